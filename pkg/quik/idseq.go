package quik

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CounterSource reserves a contiguous block of n transaction ids and returns
// its first id. The terminal-backed implementation makes one round trip per
// reservation.
type CounterSource interface {
	NextBlock(ctx context.Context, n int64) (int64, error)
}

type nextIDsRequest struct {
	Count int64 `json:"count"`
}

type nextIDsResponse struct {
	Start int64 `json:"start"`
}

// TransportCounter implements CounterSource over the request channel.
type TransportCounter struct {
	Transport *Transport
}

func (c *TransportCounter) NextBlock(ctx context.Context, n int64) (int64, error) {
	var resp nextIDsResponse
	if err := c.Transport.Request(ctx, CmdNextTransIDs, &nextIDsRequest{Count: n}, &resp); err != nil {
		return 0, err
	}
	if resp.Start <= 0 {
		return 0, fmt.Errorf("%w: counter returned %d", ErrInvalidID, resp.Start)
	}
	return resp.Start, nil
}

type idBlock struct {
	next, end int64
}

type refill struct {
	done chan struct{}
	blk  idBlock
	err  error
}

// Allocator hands out strictly increasing transaction ids. With BlockSize 1
// every id is one round trip. With a larger block, ids come from a locally
// owned cursor; the next block is reserved in the background as soon as the
// current block dispenses its last id, so the synchronous path rarely
// blocks. At most one reservation is in flight at a time.
type Allocator struct {
	src  CounterSource
	size int64

	mu       sync.Mutex
	cur      idBlock
	inFlight *refill
}

func NewAllocator(src CounterSource, blockSize int64) *Allocator {
	if blockSize < 1 {
		blockSize = 1
	}
	return &Allocator{src: src, size: blockSize}
}

// Next returns the next transaction id.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	if a.size == 1 {
		return a.src.NextBlock(ctx, 1)
	}

	a.mu.Lock()
	for {
		if a.cur.next < a.cur.end {
			id := a.cur.next
			a.cur.next++
			if a.cur.next == a.cur.end && a.inFlight == nil {
				a.startRefill()
			}
			a.mu.Unlock()
			return id, nil
		}

		// Exhausted. Join the in-flight reservation instead of starting a
		// second one.
		if a.inFlight == nil {
			a.startRefill()
		}
		r := a.inFlight
		a.mu.Unlock()

		select {
		case <-r.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}

		a.mu.Lock()
		if a.inFlight == r {
			a.inFlight = nil
			if r.err != nil {
				a.mu.Unlock()
				return 0, r.err
			}
			a.cur = r.blk
		}
	}
}

// startRefill is called with a.mu held.
func (a *Allocator) startRefill() {
	r := &refill{done: make(chan struct{})}
	a.inFlight = r
	size := a.size
	go func() {
		start, err := a.src.NextBlock(context.Background(), size)
		if err != nil {
			zap.S().Warnw("transaction id block reservation failed", "err", err)
			r.err = err
		} else {
			r.blk = idBlock{next: start, end: start + size}
		}
		close(r.done)
	}()
}
