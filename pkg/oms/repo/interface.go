package repo

import (
	"context"
	"errors"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrNegativeBalance = errors.New("balance would become negative")
)

// IRepo is the transactional persistence contract of the exchange.
type IRepo interface {
	Instrument() IInstrument
	Order() IOrder
	Trade() ITrade
	Account() IAccount
	Holding() IHolding

	// Transaction runs fn against a repo bound to one unit of work. The unit
	// commits iff fn returns nil.
	Transaction(ctx context.Context, fn func(tx IRepo) error) error
}

type IInstrument interface {
	Create(ctx context.Context, record *model.Instrument) (*model.Instrument, error)
	GetBySymbol(ctx context.Context, symbol string) (*model.Instrument, error)
	ListActive(ctx context.Context) ([]*model.Instrument, error)
	UpdateDisplayPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

type IOrder interface {
	Create(ctx context.Context, record *model.Order) (*model.Order, error)
	// GetForUpdate loads an order and locks its row until the unit ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Order, error)
	GetByIdempotencyKey(ctx context.Context, owner, key string) (*model.Order, error)
	// UpdateFill writes filled_quantity and status.
	UpdateFill(ctx context.Context, record *model.Order) error
	ListByOwner(ctx context.Context, owner string) ([]*model.Order, error)
	// ListResting returns OPEN and PARTIALLY_FILLED LIMIT orders of an
	// instrument by (created_at, id).
	ListResting(ctx context.Context, instrumentID int64) ([]*model.Order, error)
}

type ITrade interface {
	Create(ctx context.Context, record *model.Trade) (*model.Trade, error)
	ListByInstrument(ctx context.Context, instrumentID int64) ([]*model.Trade, error)
}

type IAccount interface {
	Create(ctx context.Context, record *model.Account) (*model.Account, error)
	Get(ctx context.Context, owner string) (*model.Account, error)
	GetForUpdate(ctx context.Context, owner string) (*model.Account, error)
	// AddCash adds delta (possibly negative) to the owner's balance.
	AddCash(ctx context.Context, owner string, delta decimal.Decimal) error
}

type IHolding interface {
	GetForUpdate(ctx context.Context, owner string, instrumentID int64) (*model.Holding, error)
	ListByOwner(ctx context.Context, owner string) ([]*model.Holding, error)
	// AddQuantity adds delta to a holding, creating it when delta > 0.
	AddQuantity(ctx context.Context, owner string, instrumentID int64, delta int64) error
}
