package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the side a taker on s matches against.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Entry is the matching view of a resting limit order.
type Entry struct {
	OrderID           int64
	Owner             string
	Side              Side
	Price             decimal.Decimal
	RemainingQuantity int64
	ArrivalTime       time.Time
}

// before reports whether e has time priority over other at the same price.
func (e *Entry) before(other *Entry) bool {
	if e.ArrivalTime.Equal(other.ArrivalTime) {
		return e.OrderID < other.OrderID
	}
	return e.ArrivalTime.Before(other.ArrivalTime)
}
