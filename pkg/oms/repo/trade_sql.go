package repo

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"gorm.io/gorm"
)

type TradeSQLRepo struct {
	db *gorm.DB
}

func NewTradeSQLRepo(db *gorm.DB) *TradeSQLRepo {
	return &TradeSQLRepo{
		db: db,
	}
}

func (s *TradeSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *TradeSQLRepo) Create(ctx context.Context, record *model.Trade) (*model.Trade, error) {
	return record, translate(r.dbWithContext(ctx).Create(record).Error)
}

func (r *TradeSQLRepo) ListByInstrument(ctx context.Context, instrumentID int64) ([]*model.Trade, error) {
	var records []*model.Trade
	err := r.dbWithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("id ASC").
		Find(&records).Error
	return records, translate(err)
}
