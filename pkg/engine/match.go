package engine

import (
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

// Order is the taker side of a match.
type Order struct {
	ID             int64
	Owner          string
	Side           orderbook.Side
	Type           OrderType
	Price          decimal.Decimal // ignored for MARKET
	Quantity       int64
	FilledQuantity int64
	ArrivalTime    time.Time

	// Budget caps the cash a MARKET BUY may spend. Zero means no cap.
	Budget decimal.Decimal
}

// Fill is a proposed trade between the taker and one resting maker.
type Fill struct {
	BuyOrderID   int64
	SellOrderID  int64
	BuyOwner     string
	SellOwner    string
	MakerOrderID int64
	Price        decimal.Decimal
	Quantity     int64
}

// Notional is price × quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}

type MatchResult struct {
	Fills          []Fill
	FilledQuantity int64 // Quantity minus what is still unfilled
	Remaining      int64
	Rested         bool
}
