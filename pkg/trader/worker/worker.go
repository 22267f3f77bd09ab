package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	kafkawrapper "github.com/x5500/QUIKSharp-sub001/pkg/kafka_wrapper"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/repo"
)

// Worker drains the lifecycle topic into the journal database. Inserts are
// keyed by the deterministic event id, so replays after a consumer restart
// are absorbed by the store.
type Worker struct {
	events repo.ILifecycleEvent
}

func NewWorker(repo repo.IRepo) *Worker {
	return &Worker{
		events: repo.LifecycleEvent(),
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, w.handleBatch)
}

func (w *Worker) handleBatch(ctx context.Context, msgs []kafkawrapper.Message) error {
	records := make([]*model.LifecycleEvent, 0, len(msgs))
	for _, m := range msgs {
		ev := &model.LifecycleEvent{}
		if err := json.Unmarshal(m.Value, ev); err != nil {
			zap.S().Warnw("skipping undecodable lifecycle event",
				"topic", m.Topic, "offset", m.Offset, "err", err)
			continue
		}
		records = append(records, ev)
	}
	_, err := w.events.BulkCreate(ctx, records)
	return err
}
