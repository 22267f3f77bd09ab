package quik

import (
	"sync"

	"go.uber.org/zap"
)

// EventKind names one class of terminal notification.
type EventKind int

const (
	EventRequestConnected EventKind = iota
	EventRequestDisconnected
	EventCallbackConnected
	EventCallbackDisconnected
	EventOrder
	EventTrade
	EventStopOrder
	EventTransReply
	EventNewCandle
)

// Handler consumes one notification. Handlers run synchronously on the
// delivering goroutine and must not block for long.
type Handler func(msg *Message)

type subscriber struct {
	fn Handler
}

// Pubsub is a per-kind subscriber registry. Dispatch walks a snapshot of the
// current list, so subscribing or unsubscribing from inside a handler never
// corrupts an in-flight delivery. A panicking handler is logged and skipped;
// remaining handlers still run.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[EventKind][]*subscriber
}

func NewPubsub() *Pubsub {
	return &Pubsub{subs: make(map[EventKind][]*subscriber)}
}

// Subscribe registers a handler and returns its unsubscribe func.
func (p *Pubsub) Subscribe(kind EventKind, fn Handler) func() {
	s := &subscriber{fn: fn}
	p.mu.Lock()
	p.subs[kind] = append(p.subs[kind], s)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		list := p.subs[kind]
		for i, cur := range list {
			if cur == s {
				p.subs[kind] = append(append([]*subscriber{}, list[:i]...), list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers msg to every subscriber of kind, sequentially.
func (p *Pubsub) Publish(kind EventKind, msg *Message) {
	p.mu.RLock()
	snapshot := p.subs[kind]
	p.mu.RUnlock()

	for _, s := range snapshot {
		p.deliver(s, msg)
	}
}

func (p *Pubsub) deliver(s *subscriber, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("event handler panicked", "panic", r)
		}
	}()
	s.fn(msg)
}
