package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderRequest is an order submission as received from the transport.
type OrderRequest struct {
	InstrumentSymbol string           `json:"instrument_symbol"`
	Side             OrderSide        `json:"side"`
	Type             OrderType        `json:"type"`
	Quantity         int64            `json:"quantity"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
}

// Validate checks the request shape. A price on a MARKET request is
// ignored, not rejected.
func (r *OrderRequest) Validate() error {
	if NormalizeSymbol(r.InstrumentSymbol) == "" {
		return errors.New("instrument_symbol is required")
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return errors.New("side must be BUY or SELL")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}

	switch r.Type {
	case OrderTypeLimit:
		if r.Price == nil {
			return errors.New("price is required for LIMIT orders")
		}
		if !r.Price.IsPositive() {
			return errors.New("price must be greater than 0")
		}
		if !r.Price.Equal(r.Price.Truncate(4)) {
			return errors.New("price supports at most 4 decimal places")
		}
	case OrderTypeMarket:
	default:
		return errors.New("type must be LIMIT or MARKET")
	}

	if len(r.IdempotencyKey) > 128 {
		return errors.New("idempotency_key is too long")
	}
	return nil
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
