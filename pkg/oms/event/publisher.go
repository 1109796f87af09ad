package event

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// TradeEvent is broadcast on TradesChannel once per executed trade.
type TradeEvent struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp int64           `json:"timestamp"` // unix ms
}

func (ev TradeEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol    string      `json:"symbol"`
		Price     json.Number `json:"price"`
		Quantity  int64       `json:"quantity"`
		Timestamp int64       `json:"timestamp"`
	}{ev.Symbol, json.Number(ev.Price.String()), ev.Quantity, ev.Timestamp})
}

// DepthEvent carries a book snapshot; it serializes as the bare snapshot.
type DepthEvent struct {
	Symbol string `json:"-"`
	orderbook.Depth
}

type Publisher interface {
	PublishTrade(ctx context.Context, ev TradeEvent) error
	PublishDepth(ctx context.Context, ev DepthEvent) error
}

func TradesChannel(symbol string) string {
	return "trades:" + symbol
}

func OrderBookChannel(symbol string) string {
	return "orderbook:" + symbol
}

// MultiPublisher fans every event out to all publishers and joins their
// errors.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishTrade(ctx context.Context, ev TradeEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishTrade(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishDepth(ctx context.Context, ev DepthEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishDepth(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type NopPublisher struct{}

func (NopPublisher) PublishTrade(context.Context, TradeEvent) error { return nil }
func (NopPublisher) PublishDepth(context.Context, DepthEvent) error { return nil }
