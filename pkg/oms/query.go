package oms

import (
	"context"
	"errors"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/joripage/exchange-sim/pkg/orderbook"
)

// Depth snapshots the live book of symbol. levels <= 0 uses the configured
// depth.
func (s *OMS) Depth(ctx context.Context, symbol string, levels int) (orderbook.Depth, error) {
	instrument, err := s.GetInstrument(ctx, symbol)
	if err != nil {
		return orderbook.Depth{}, err
	}
	if levels <= 0 {
		levels = s.depthLevels
	}
	depth, err := s.engine.Depth(ctx, instrument.Symbol, levels)
	if err != nil {
		return orderbook.Depth{}, settlementError(err)
	}
	return depth, nil
}

// GetInstrument returns an active instrument.
func (s *OMS) GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	symbol = model.NormalizeSymbol(symbol)
	instrument, err := s.repo.Instrument().GetBySymbol(ctx, symbol)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !instrument.IsActive) {
		return nil, newError(KindInstrumentNotFound, "instrument %s not found", symbol)
	}
	if err != nil {
		return nil, err
	}
	return instrument, nil
}

func (s *OMS) ListInstruments(ctx context.Context) ([]*model.Instrument, error) {
	return s.repo.Instrument().ListActive(ctx)
}

func (s *OMS) GetAccount(ctx context.Context, owner string) (*model.Account, error) {
	account, err := s.repo.Account().Get(ctx, owner)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, newError(KindAccountNotFound, "no account for %s", owner)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *OMS) ListHoldings(ctx context.Context, owner string) ([]*model.Holding, error) {
	return s.repo.Holding().ListByOwner(ctx, owner)
}

// ListOrders returns the owner's orders, newest first.
func (s *OMS) ListOrders(ctx context.Context, owner string) ([]*model.Order, error) {
	return s.repo.Order().ListByOwner(ctx, owner)
}
