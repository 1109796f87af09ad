package repo

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InstrumentSQLRepo struct {
	db *gorm.DB
}

func NewInstrumentSQLRepo(db *gorm.DB) *InstrumentSQLRepo {
	return &InstrumentSQLRepo{
		db: db,
	}
}

func (s *InstrumentSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *InstrumentSQLRepo) Create(ctx context.Context, record *model.Instrument) (*model.Instrument, error) {
	return record, translate(r.dbWithContext(ctx).Create(record).Error)
}

func (r *InstrumentSQLRepo) GetBySymbol(ctx context.Context, symbol string) (*model.Instrument, error) {
	record := &model.Instrument{}
	err := r.dbWithContext(ctx).Where("symbol = ?", symbol).First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *InstrumentSQLRepo) ListActive(ctx context.Context) ([]*model.Instrument, error) {
	var records []*model.Instrument
	err := r.dbWithContext(ctx).
		Where("is_active = ?", true).
		Order("symbol ASC").
		Find(&records).Error
	return records, translate(err)
}

func (r *InstrumentSQLRepo) UpdateDisplayPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	res := r.dbWithContext(ctx).
		Model(&model.Instrument{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"display_price": price,
			"updated_at":    gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
