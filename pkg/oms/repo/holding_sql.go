package repo

import (
	"context"
	"time"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HoldingSQLRepo struct {
	db *gorm.DB
}

func NewHoldingSQLRepo(db *gorm.DB) *HoldingSQLRepo {
	return &HoldingSQLRepo{
		db: db,
	}
}

func (s *HoldingSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *HoldingSQLRepo) GetForUpdate(ctx context.Context, owner string, instrumentID int64) (*model.Holding, error) {
	record := &model.Holding{}
	err := r.dbWithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner = ? AND instrument_id = ?", owner, instrumentID).
		First(record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

func (r *HoldingSQLRepo) ListByOwner(ctx context.Context, owner string) ([]*model.Holding, error) {
	var records []*model.Holding
	err := r.dbWithContext(ctx).
		Where("owner = ?", owner).
		Order("instrument_id ASC").
		Find(&records).Error
	return records, translate(err)
}

func (r *HoldingSQLRepo) AddQuantity(ctx context.Context, owner string, instrumentID int64, delta int64) error {
	if delta >= 0 {
		now := time.Now()
		record := &model.Holding{
			Owner:        owner,
			InstrumentID: instrumentID,
			Quantity:     delta,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := r.dbWithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "owner"}, {Name: "instrument_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity":   gorm.Expr("holdings.quantity + ?", delta),
					"updated_at": now,
				}),
			}).
			Create(record).Error
		return translate(err)
	}

	res := r.dbWithContext(ctx).
		Model(&model.Holding{}).
		Where("owner = ? AND instrument_id = ? AND quantity + ? >= 0", owner, instrumentID, delta).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetForUpdate(ctx, owner, instrumentID); err != nil {
			return err
		}
		return ErrNegativeBalance
	}
	return nil
}
