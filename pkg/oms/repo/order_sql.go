package repo

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{
		db: db,
	}
}

func (s *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *OrderSQLRepo) Create(ctx context.Context, record *model.Order) (*model.Order, error) {
	return record, translate(r.dbWithContext(ctx).Create(record).Error)
}

func (r *OrderSQLRepo) GetForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	record := &model.Order{}
	err := r.dbWithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *OrderSQLRepo) GetByIdempotencyKey(ctx context.Context, owner, key string) (*model.Order, error) {
	record := &model.Order{}
	err := r.dbWithContext(ctx).
		Where("owner = ? AND idempotency_key = ?", owner, key).
		First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *OrderSQLRepo) UpdateFill(ctx context.Context, record *model.Order) error {
	res := r.dbWithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"filled_quantity": record.FilledQuantity,
			"status":          record.Status,
			"updated_at":      gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderSQLRepo) ListByOwner(ctx context.Context, owner string) ([]*model.Order, error) {
	var records []*model.Order
	err := r.dbWithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	return records, translate(err)
}

func (r *OrderSQLRepo) ListResting(ctx context.Context, instrumentID int64) ([]*model.Order, error) {
	var records []*model.Order
	err := r.dbWithContext(ctx).
		Where("instrument_id = ? AND type = ? AND status IN ?", instrumentID, model.OrderTypeLimit,
			[]model.OrderStatus{model.OrderStatusOpen, model.OrderStatusPartiallyFilled}).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	return records, translate(err)
}
