package repo

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountSQLRepo struct {
	db *gorm.DB
}

func NewAccountSQLRepo(db *gorm.DB) *AccountSQLRepo {
	return &AccountSQLRepo{
		db: db,
	}
}

func (s *AccountSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *AccountSQLRepo) Create(ctx context.Context, record *model.Account) (*model.Account, error) {
	if record.CashBalance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	return record, translate(r.dbWithContext(ctx).Create(record).Error)
}

func (r *AccountSQLRepo) Get(ctx context.Context, owner string) (*model.Account, error) {
	record := &model.Account{}
	err := r.dbWithContext(ctx).Where("owner = ?", owner).First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *AccountSQLRepo) GetForUpdate(ctx context.Context, owner string) (*model.Account, error) {
	record := &model.Account{}
	err := r.dbWithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner = ?", owner).
		First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *AccountSQLRepo) AddCash(ctx context.Context, owner string, delta decimal.Decimal) error {
	res := r.dbWithContext(ctx).
		Model(&model.Account{}).
		Where("owner = ? AND cash_balance + ? >= 0", owner, delta).
		Updates(map[string]interface{}{
			"cash_balance": gorm.Expr("cash_balance + ?", delta),
			"updated_at":   gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, owner); err != nil {
			return err
		}
		return ErrNegativeBalance
	}
	return nil
}
