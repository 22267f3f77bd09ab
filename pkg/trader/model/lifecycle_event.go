package model

import (
	"fmt"
	"time"
)

// LifecycleKind names one derived order lifecycle event.
type LifecycleKind string

const (
	LifecyclePlaced   LifecycleKind = "Placed"
	LifecyclePartial  LifecycleKind = "Partial"
	LifecycleExecuted LifecycleKind = "Executed"
	LifecycleFilled   LifecycleKind = "Filled"
	LifecycleKilled   LifecycleKind = "Killed"
	LifecycleRejected LifecycleKind = "Rejected"
)

// LifecycleEvent is one journal entry derived by the reconciliation engine.
// Audit only; never read back to rebuild state.
type LifecycleEvent struct {
	EventID   string        `gorm:"primaryKey" json:"event_id"`
	TransID   int64         `json:"trans_id"`
	OrderNum  int64         `json:"order_num"`
	Kind      LifecycleKind `json:"kind"`
	Delta     int64         `json:"delta"`
	QtyTraded int64         `json:"qty_traded"`
	QtyLeft   int64         `json:"qty_left"`
	Timestamp time.Time     `json:"ts"`
}

func (LifecycleEvent) TableName() string {
	return "lifecycle_events"
}

func NewLifecycleEvent(kind LifecycleKind, transID, orderNum, delta, traded, left int64) *LifecycleEvent {
	return &LifecycleEvent{
		EventID:   fmt.Sprintf("%d-%s-%d", transID, kind, traded),
		TransID:   transID,
		OrderNum:  orderNum,
		Kind:      kind,
		Delta:     delta,
		QtyTraded: traded,
		QtyLeft:   left,
		Timestamp: time.Now(),
	}
}
