package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

type LifecycleEventSQLRepo struct {
	db *gorm.DB
}

func NewLifecycleEventSQLRepo(db *gorm.DB) *LifecycleEventSQLRepo {
	return &LifecycleEventSQLRepo{
		db: db,
	}
}

func (r *LifecycleEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Create inserts one event. Replays of an already journaled event are not an
// error; the event id is deterministic, so the conflict is skipped.
func (r *LifecycleEventSQLRepo) Create(ctx context.Context, record *model.LifecycleEvent) (*model.LifecycleEvent, error) {
	return record, r.dbWithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

func (r *LifecycleEventSQLRepo) BulkCreate(ctx context.Context, records []*model.LifecycleEvent) ([]*model.LifecycleEvent, error) {
	if len(records) == 0 {
		return records, nil
	}
	return records, r.dbWithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(records).Error
}

func (r *LifecycleEventSQLRepo) ListByOrderNum(ctx context.Context, orderNum int64) ([]*model.LifecycleEvent, error) {
	var out []*model.LifecycleEvent
	err := r.dbWithContext(ctx).
		Where("order_num = ?", orderNum).
		Order("timestamp asc").
		Find(&out).Error
	return out, err
}
