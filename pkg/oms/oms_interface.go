package oms

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type IOMS interface {
	Submit(ctx context.Context, req *model.OrderRequest, owner string) (*model.Order, error)
	Recover(ctx context.Context) error
	Depth(ctx context.Context, symbol string, levels int) (orderbook.Depth, error)

	CreateInstrument(ctx context.Context, symbol, name string, displayPrice decimal.Decimal) (*model.Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error)
	ListInstruments(ctx context.Context) ([]*model.Instrument, error)

	OpenAccount(ctx context.Context, owner string, cash decimal.Decimal) (*model.Account, error)
	DepositCash(ctx context.Context, owner string, amount decimal.Decimal) error
	DepositHoldings(ctx context.Context, owner, symbol string, qty int64) error
	GetAccount(ctx context.Context, owner string) (*model.Account, error)
	ListHoldings(ctx context.Context, owner string) ([]*model.Holding, error)
	ListOrders(ctx context.Context, owner string) ([]*model.Order, error)
}

var _ IOMS = (*OMS)(nil)
