package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Trade struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BuyOrderID   int64           `gorm:"column:buy_order_id;not null" json:"buy_order_id"`
	SellOrderID  int64           `gorm:"column:sell_order_id;not null" json:"sell_order_id"`
	MakerOrderID int64           `gorm:"column:maker_order_id;not null" json:"maker_order_id"`
	InstrumentID int64           `gorm:"column:instrument_id;not null" json:"instrument_id"`
	Symbol       string          `gorm:"column:symbol;not null" json:"symbol"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(18,4);not null" json:"price"`
	Quantity     int64           `gorm:"column:quantity;not null" json:"quantity"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
