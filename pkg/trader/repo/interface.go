package repo

import (
	"context"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

type ILifecycleEvent interface {
	Create(ctx context.Context, record *model.LifecycleEvent) (*model.LifecycleEvent, error)
	BulkCreate(ctx context.Context, records []*model.LifecycleEvent) ([]*model.LifecycleEvent, error)
	ListByOrderNum(ctx context.Context, orderNum int64) ([]*model.LifecycleEvent, error)
}
