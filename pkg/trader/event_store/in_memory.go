package eventstore

import (
	"sync"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

type InMemoryEventStore struct {
	mu      sync.RWMutex
	byOrder map[int64][]*model.LifecycleEvent
	byTrans map[int64][]*model.LifecycleEvent
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		byOrder: make(map[int64][]*model.LifecycleEvent),
		byTrans: make(map[int64][]*model.LifecycleEvent),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.OrderNum != 0 {
		s.byOrder[ev.OrderNum] = append(s.byOrder[ev.OrderNum], ev)
	}
	if ev.TransID != 0 {
		s.byTrans[ev.TransID] = append(s.byTrans[ev.TransID], ev)
	}
}

func (s *InMemoryEventStore) EventsByOrder(orderNum int64) []*model.LifecycleEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*model.LifecycleEvent{}, s.byOrder[orderNum]...)
}

func (s *InMemoryEventStore) EventsByTrans(transID int64) []*model.LifecycleEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*model.LifecycleEvent{}, s.byTrans[transID]...)
}
