package quik

import (
	"sync"
	"sync/atomic"
)

// pendingRequest is a sent-but-unanswered request. It resolves exactly once:
// matching response, fault, timeout, cancellation or transport teardown.
type pendingRequest struct {
	msg    *Message
	queued atomic.Bool

	once sync.Once
	done chan struct{}
	resp *Message
	err  error
}

func newPendingRequest(msg *Message) *pendingRequest {
	return &pendingRequest{msg: msg, done: make(chan struct{})}
}

func (p *pendingRequest) resolve(resp *Message, err error) {
	p.once.Do(func() {
		p.resp = resp
		p.err = err
		close(p.done)
	})
}

func (p *pendingRequest) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
