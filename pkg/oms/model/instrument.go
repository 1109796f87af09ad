package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Instrument struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Symbol string `gorm:"column:symbol;not null" json:"symbol"`
	Name   string `gorm:"column:name;not null" json:"name"`
	// DisplayPrice is the last traded (or listing) price shown to users.
	DisplayPrice decimal.Decimal `gorm:"column:display_price;type:numeric(18,4);not null" json:"display_price"`
	IsActive     bool            `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Instrument) TableName() string {
	return "instruments"
}
