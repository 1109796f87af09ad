package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

type Order struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Owner        string `gorm:"column:owner;not null" json:"owner"`
	InstrumentID int64  `gorm:"column:instrument_id;not null" json:"instrument_id"`
	Symbol       string `gorm:"column:symbol;not null" json:"symbol"`

	Side   OrderSide   `gorm:"column:side;not null" json:"side"`
	Type   OrderType   `gorm:"column:type;not null" json:"type"`
	Status OrderStatus `gorm:"column:status;not null" json:"status"`

	// nil for MARKET orders
	Price          *decimal.Decimal `gorm:"column:price;type:numeric(18,4)" json:"price,omitempty"`
	Quantity       int64            `gorm:"column:quantity;not null" json:"quantity"`
	FilledQuantity int64            `gorm:"column:filled_quantity;not null" json:"filled_quantity"`

	IdempotencyKey *string `gorm:"column:idempotency_key" json:"idempotency_key,omitempty"`

	// CreatedAt is the arrival time used for time priority.
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// LimitPrice returns the order price, zero for MARKET orders.
func (o *Order) LimitPrice() decimal.Decimal {
	if o.Price == nil {
		return decimal.Zero
	}
	return *o.Price
}

// ApplyFill adds qty to the filled quantity and recomputes the status.
func (o *Order) ApplyFill(qty int64) {
	o.FilledQuantity += qty
	o.RefreshStatus()
}

// RefreshStatus derives the status from the filled quantity. Terminal
// cancel/reject states are left alone.
func (o *Order) RefreshStatus() {
	if o.Status == OrderStatusCancelled || o.Status == OrderStatusRejected {
		return
	}
	switch {
	case o.FilledQuantity >= o.Quantity:
		o.Status = OrderStatusFilled
	case o.FilledQuantity > 0:
		o.Status = OrderStatusPartiallyFilled
	default:
		o.Status = OrderStatusOpen
	}
}

func (o *Order) IsEnd() bool {
	return o.Status == OrderStatusFilled ||
		o.Status == OrderStatusCancelled ||
		o.Status == OrderStatusRejected
}

// IsResting reports whether the order belongs in the book.
func (o *Order) IsResting() bool {
	return o.Type == OrderTypeLimit && !o.IsEnd() && o.RemainingQuantity() > 0
}
