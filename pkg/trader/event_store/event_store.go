package eventstore

import "github.com/x5500/QUIKSharp-sub001/pkg/trader/model"

// EventStore journals derived lifecycle events. Audit only: the engine never
// reads it back to rebuild order state.
type EventStore interface {
	AddEvent(ev *model.LifecycleEvent)
	EventsByOrder(orderNum int64) []*model.LifecycleEvent
	EventsByTrans(transID int64) []*model.LifecycleEvent
}
