package quik

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 20 * time.Second
	dialTimeout           = 5 * time.Second
	writeTimeout          = 10 * time.Second
	maxLineBytes          = 4 << 20
)

// Config describes the two terminal endpoints and request defaults.
type Config struct {
	Host                  string `yaml:"host"`
	RequestPort           int    `yaml:"request_port"`
	CallbackPort          int    `yaml:"callback_port"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	IDBlockSize           int64  `yaml:"id_block_size"`
}

// Transport owns the two long-lived terminal connections: a duplex
// request/response channel and an ingress-only callback feed. Requests are
// correlated to responses by envelope id; push notifications fan out through
// the Events registry.
type Transport struct {
	requestAddr    string
	callbackAddr   string
	requestTimeout time.Duration

	events  *Pubsub
	pending sync.Map // id -> *pendingRequest
	corrID  atomic.Int64

	outMu    sync.Mutex
	out      deque.Deque[int64]
	outReady chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewTransport(cfg *Config) *Transport {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	t := &Transport{
		requestAddr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.RequestPort),
		callbackAddr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.CallbackPort),
		requestTimeout: timeout,
		events:         NewPubsub(),
		outReady:       make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
	}
	t.resetCorrID()
	return t
}

// Events exposes the notification registry for subscribers.
func (t *Transport) Events() *Pubsub {
	return t.events
}

func (t *Transport) Start() {
	t.wg.Add(2)
	go t.runRequestConn()
	go t.runCallbackConn()
}

// Stop tears the transport down. Every request still pending resolves with
// ErrStopped.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.pending.Range(func(_, v any) bool {
		v.(*pendingRequest).resolve(nil, ErrStopped)
		return true
	})
	t.wg.Wait()
}

// Send transmits one request and blocks until its future resolves. The
// outcome is exactly one of: the matching response; a remote or local fault;
// ctx cancellation; the default request timeout; or ErrStopped. A response
// arriving after the future already resolved is dropped silently.
func (t *Transport) Send(ctx context.Context, msg *Message) (*Message, error) {
	select {
	case <-t.stopCh:
		return nil, ErrStopped
	default:
	}

	if msg.ID == 0 {
		msg.ID = t.corrID.Add(1)
	}
	if msg.Created == 0 {
		msg.Created = time.Now().UnixMilli()
	}

	p := newPendingRequest(msg)
	t.pending.Store(msg.ID, p)
	defer t.pending.Delete(msg.ID)

	t.enqueue(p)

	timer := time.NewTimer(t.requestTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		p.resolve(nil, ctx.Err())
		return nil, ctx.Err()
	case <-timer.C:
		p.resolve(nil, ErrTimeout)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, msg.Command, t.requestTimeout)
	case <-t.stopCh:
		p.resolve(nil, ErrStopped)
		return nil, ErrStopped
	}
}

// Request marshals payload, sends cmd and unmarshals the response data into
// out when out is non-nil.
func (t *Transport) Request(ctx context.Context, cmd string, payload, out any) error {
	msg, err := NewRequest(cmd, payload)
	if err != nil {
		return err
	}
	resp, err := t.Send(ctx, msg)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", cmd, err)
	}
	return nil
}

// Ping round-trips a liveness probe over the request channel.
func (t *Transport) Ping(ctx context.Context) error {
	return t.Request(ctx, CmdPing, nil, nil)
}

func (t *Transport) resetCorrID() {
	t.corrID.Store(time.Now().UnixMilli())
}

func (t *Transport) enqueue(p *pendingRequest) {
	if !p.queued.CompareAndSwap(false, true) {
		return
	}
	t.outMu.Lock()
	t.out.PushBack(p.msg.ID)
	t.outMu.Unlock()
	select {
	case t.outReady <- struct{}{}:
	default:
	}
}

func (t *Transport) popOutbound() (int64, bool) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	if t.out.Len() == 0 {
		return 0, false
	}
	return t.out.PopFront(), true
}

// requeuePending schedules one retransmission for every request that is
// still unresolved. Called on every (re)connect of the request channel.
func (t *Transport) requeuePending() {
	n := 0
	t.pending.Range(func(_, v any) bool {
		p := v.(*pendingRequest)
		if !p.resolved() {
			t.enqueue(p)
			n++
		}
		return true
	})

	// A request the previous sender never popped still has its queued flag
	// set, so enqueue above does not signal for it. Wake the new sender for
	// anything sitting in the deque.
	t.outMu.Lock()
	waiting := t.out.Len() > 0
	t.outMu.Unlock()
	if waiting {
		select {
		case t.outReady <- struct{}{}:
		default:
		}
	}

	if n > 0 {
		zap.S().Infow("requeued pending requests", "count", n)
	}
}

func (t *Transport) runRequestConn() {
	defer t.wg.Done()
	for {
		conn, err := t.dial(t.requestAddr)
		if err != nil {
			return
		}
		zap.S().Infow("request channel connected", "addr", t.requestAddr)
		t.events.Publish(EventRequestConnected, &Message{Command: "OnConnected"})
		t.requeuePending()

		done := make(chan struct{})
		errc := make(chan error, 2)
		go t.sendLoop(conn, done, errc)
		go t.recvLoop(conn, errc)

		select {
		case <-t.stopCh:
			close(done)
			conn.Close()
			return
		case err := <-errc:
			close(done)
			conn.Close()
			zap.S().Warnw("request channel lost", "err", err)
			t.events.Publish(EventRequestDisconnected, &Message{Command: "OnDisconnected"})
		}
	}
}

// sendLoop drains the outbound queue onto conn. Entries already resolved
// (timed out, cancelled) are skipped.
func (t *Transport) sendLoop(conn net.Conn, done chan struct{}, errc chan<- error) {
	for {
		select {
		case <-t.stopCh:
			return
		case <-done:
			return
		case <-t.outReady:
		}

		for {
			id, ok := t.popOutbound()
			if !ok {
				break
			}
			v, ok := t.pending.Load(id)
			if !ok {
				continue
			}
			p := v.(*pendingRequest)
			p.queued.Store(false)
			if p.resolved() {
				continue
			}
			if p.msg.Expired(time.Now()) {
				p.resolve(nil, ErrExpired)
				continue
			}
			line, err := encodeMessage(p.msg)
			if err != nil {
				p.resolve(nil, err)
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				errc <- fmt.Errorf("set write deadline: %w", err)
				return
			}
			if _, err := conn.Write(line); err != nil {
				errc <- fmt.Errorf("write %s: %w", p.msg.Command, err)
				return
			}
		}
	}
}

// recvLoop reads response lines and resolves pending futures. A malformed
// line is dropped without terminating the loop.
func (t *Transport) recvLoop(conn net.Conn, errc chan<- error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		msg, err := decodeMessage(scanner.Bytes())
		if err != nil {
			zap.S().Warnw("dropping malformed response line", "err", err)
			continue
		}
		t.handleResponse(msg)
	}
	if err := scanner.Err(); err != nil {
		errc <- err
		return
	}
	errc <- fmt.Errorf("request channel closed by peer")
}

func (t *Transport) handleResponse(msg *Message) {
	if msg.ID <= 0 {
		zap.S().Warnw("non-positive response id, resetting correlation counter", "id", msg.ID)
		t.resetCorrID()
		return
	}
	v, ok := t.pending.Load(msg.ID)
	if !ok {
		// superseded or unknown; never double-resolve
		return
	}
	p := v.(*pendingRequest)
	switch {
	case msg.Fault() != nil:
		p.resolve(nil, msg.Fault())
	case msg.Command != p.msg.Command:
		p.resolve(nil, fmt.Errorf("%w: sent %s, got %s", ErrCommandMismatch, p.msg.Command, msg.Command))
	case msg.Expired(time.Now()):
		p.resolve(nil, ErrExpired)
	default:
		p.resolve(msg, nil)
	}
}

// runCallbackConn reads the push feed and fans notifications out by kind.
func (t *Transport) runCallbackConn() {
	defer t.wg.Done()
	for {
		conn, err := t.dial(t.callbackAddr)
		if err != nil {
			return
		}
		zap.S().Infow("callback channel connected", "addr", t.callbackAddr)
		t.events.Publish(EventCallbackConnected, &Message{Command: "OnConnected"})

		t.readCallbacks(conn)
		conn.Close()

		select {
		case <-t.stopCh:
			return
		default:
			zap.S().Warnw("callback channel lost")
			t.events.Publish(EventCallbackDisconnected, &Message{Command: "OnDisconnected"})
		}
	}
}

func (t *Transport) readCallbacks(conn net.Conn) {
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-t.stopCh:
			conn.Close()
		case <-closed:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		msg, err := decodeMessage(scanner.Bytes())
		if err != nil {
			zap.S().Warnw("dropping malformed callback line", "err", err)
			continue
		}
		if msg.Expired(time.Now()) {
			continue
		}
		kind, ok := callbackKind(msg.Command)
		if !ok {
			zap.S().Debugw("unhandled callback", "cmd", msg.Command)
			continue
		}
		t.events.Publish(kind, msg)
	}
}

func callbackKind(cmd string) (EventKind, bool) {
	switch cmd {
	case CallbackOrder:
		return EventOrder, true
	case CallbackTrade:
		return EventTrade, true
	case CallbackStopOrder:
		return EventStopOrder, true
	case CallbackTransReply:
		return EventTransReply, true
	case CallbackNewCandle:
		return EventNewCandle, true
	}
	return 0, false
}

// dial retries without bound until the endpoint accepts or the transport
// stops. Connection refusal is a silent retry.
func (t *Transport) dial(addr string) (net.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	for {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			return conn, nil
		}
		select {
		case <-time.After(policy.NextBackOff()):
		case <-t.stopCh:
			return nil, ErrStopped
		}
	}
}
