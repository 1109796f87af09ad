package oms

import (
	"context"
	"errors"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/joripage/exchange-sim/pkg/orderbook"
)

// bookLoader projects committed resting orders into book entries.
type bookLoader struct {
	repo repo.IRepo
}

func (l *bookLoader) LoadBook(ctx context.Context, symbol string) ([]*orderbook.Entry, error) {
	instrument, err := l.repo.Instrument().GetBySymbol(ctx, symbol)
	if errors.Is(err, repo.ErrNotFound) {
		// nothing was ever committed for an unknown symbol
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders, err := l.repo.Order().ListResting(ctx, instrument.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]*orderbook.Entry, 0, len(orders))
	for _, o := range orders {
		if !o.IsResting() {
			continue
		}
		entries = append(entries, entryFromOrder(o))
	}
	return entries, nil
}

func entryFromOrder(o *model.Order) *orderbook.Entry {
	return &orderbook.Entry{
		OrderID:           o.ID,
		Owner:             o.Owner,
		Side:              orderbook.Side(o.Side),
		Price:             o.LimitPrice(),
		RemainingQuantity: o.RemainingQuantity(),
		ArrivalTime:       o.CreatedAt,
	}
}
