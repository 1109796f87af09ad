package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	Owner       string          `gorm:"column:owner;primaryKey" json:"owner"`
	CashBalance decimal.Decimal `gorm:"column:cash_balance;type:numeric(18,4);not null" json:"cash_balance"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

type Holding struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Owner        string    `gorm:"column:owner;not null" json:"owner"`
	InstrumentID int64     `gorm:"column:instrument_id;not null" json:"instrument_id"`
	Quantity     int64     `gorm:"column:quantity;not null" json:"quantity"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}
