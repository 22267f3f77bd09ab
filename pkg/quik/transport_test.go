package quik

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// stubListener accepts connections and feeds each inbound line to handle;
// a non-nil return is written back. Used as either side of the terminal.
func stubListener(t *testing.T, handle func(conn net.Conn, msg *Message)) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					msg, err := decodeMessage(scanner.Bytes())
					if err != nil {
						continue
					}
					handle(conn, msg)
				}
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, func() { ln.Close() }
}

func reply(conn net.Conn, msg *Message) {
	line, _ := encodeMessage(msg)
	conn.Write(line)
}

// idleListener keeps accepted connections open and never writes.
func idleListener(t *testing.T) (int, func()) {
	return stubListener(t, func(net.Conn, *Message) {})
}

func newTestTransport(t *testing.T, reqPort, cbPort int, timeoutSec int) *Transport {
	t.Helper()
	tr := NewTransport(&Config{
		Host:                  "127.0.0.1",
		RequestPort:           reqPort,
		CallbackPort:          cbPort,
		RequestTimeoutSeconds: timeoutSec,
	})
	tr.Start()
	t.Cleanup(tr.Stop)
	return tr
}

func TestSendSuccess(t *testing.T) {
	reqPort, stopReq := stubListener(t, func(conn net.Conn, msg *Message) {
		reply(conn, &Message{ID: msg.ID, Command: msg.Command, Created: time.Now().UnixMilli(), Data: msg.Data})
	})
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 5)

	var out map[string]string
	err := tr.Request(context.Background(), CmdPing, map[string]string{"msg": "hi"}, &out)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out["msg"] != "hi" {
		t.Errorf("unexpected response data: %v", out)
	}
}

func TestSendCommandMismatchFaultsOnlyThatRequest(t *testing.T) {
	reqPort, stopReq := stubListener(t, func(conn net.Conn, msg *Message) {
		cmd := msg.Command
		if string(msg.Data) == `"wrong"` {
			cmd = "somethingElse"
		}
		reply(conn, &Message{ID: msg.ID, Command: cmd})
	})
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 5)

	if err := tr.Request(context.Background(), CmdPing, "wrong", nil); !errors.Is(err, ErrCommandMismatch) {
		t.Fatalf("expected command mismatch, got %v", err)
	}
	// the transport survives; the next request succeeds
	if err := tr.Request(context.Background(), CmdPing, "ok", nil); err != nil {
		t.Fatalf("transport should survive a mismatch: %v", err)
	}
}

func TestSendRemoteFaults(t *testing.T) {
	reqPort, stopReq := stubListener(t, func(conn net.Conn, msg *Message) {
		if string(msg.Data) == `"tx"` {
			reply(conn, &Message{ID: msg.ID, Command: CmdTransactionError, LuaError: "price out of band"})
			return
		}
		reply(conn, &Message{ID: msg.ID, Command: msg.Command, LuaError: "lua runtime error"})
	})
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 5)

	var txErr *TransactionError
	if err := tr.Request(context.Background(), CmdSendTransaction, "tx", nil); !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	var remErr *RemoteError
	if err := tr.Request(context.Background(), CmdSendTransaction, "generic", nil); !errors.As(err, &remErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
}

func TestSendTimeoutCancelStopDistinct(t *testing.T) {
	reqPort, stopReq := idleListener(t)
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 1)

	if err := tr.Request(context.Background(), CmdPing, nil, nil); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if err := tr.Request(ctx, CmdPing, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Send(context.Background(), &Message{Command: CmdPing})
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	tr.Stop()
	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Fatalf("expected service-stopped, got %v", err)
	}
}

func TestLateResponseDroppedSilently(t *testing.T) {
	// replies arrive 200ms late, past the first request's deadline
	reqPort, stopReq := stubListener(t, func(conn net.Conn, msg *Message) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			reply(conn, &Message{ID: msg.ID, Command: msg.Command})
		}()
	})
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tr.Request(ctx, CmdPing, nil, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// the superseded response lands mid-flight; the next request must still
	// resolve with its own response, not the stale one
	if err := tr.Request(context.Background(), CmdPing, nil, nil); err != nil {
		t.Fatalf("transport must survive a late response: %v", err)
	}
}

func TestReconnectRequeuesPending(t *testing.T) {
	seen := make(chan int64, 4)
	first := true
	reqPort, stopReq := stubListener(t, func(conn net.Conn, msg *Message) {
		seen <- msg.ID
		if first {
			first = false
			conn.Close() // drop mid-stream without answering
			return
		}
		reply(conn, &Message{ID: msg.ID, Command: msg.Command})
	})
	defer stopReq()
	cbPort, stopCb := idleListener(t)
	defer stopCb()

	tr := newTestTransport(t, reqPort, cbPort, 10)

	if err := tr.Request(context.Background(), CmdPing, nil, nil); err != nil {
		t.Fatalf("request should survive one reconnect: %v", err)
	}

	firstID := <-seen
	secondID := <-seen
	if firstID != secondID {
		t.Fatalf("retransmission must reuse the correlation id: %d vs %d", firstID, secondID)
	}
}

func TestCallbackFeedDispatch(t *testing.T) {
	reqPort, stopReq := idleListener(t)
	defer stopReq()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn
	}()

	tr := newTestTransport(t, reqPort, ln.Addr().(*net.TCPAddr).Port, 5)

	orders := make(chan *Message, 1)
	tr.Events().Subscribe(EventOrder, func(msg *Message) { orders <- msg })

	conn := <-conns
	defer conn.Close()

	// a malformed line must be dropped without killing the loop
	conn.Write([]byte("garbage{{{\n"))
	line, _ := encodeMessage(&Message{ID: 1, Command: CallbackOrder, Data: []byte(`{"order_num":7}`)})
	conn.Write(line)

	select {
	case msg := <-orders:
		if msg.Command != CallbackOrder {
			t.Fatalf("wrong callback dispatched: %s", msg.Command)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("callback not delivered")
	}
}

func TestReconnectWakesSenderForUnpoppedEntries(t *testing.T) {
	tr := NewTransport(&Config{Host: "127.0.0.1", RequestPort: 1, CallbackPort: 2})

	a := newPendingRequest(&Message{ID: 1, Command: CmdPing, Created: time.Now().UnixMilli()})
	b := newPendingRequest(&Message{ID: 2, Command: CmdPing, Created: time.Now().UnixMilli()})
	tr.pending.Store(a.msg.ID, a)
	tr.pending.Store(b.msg.ID, b)
	tr.enqueue(a)
	tr.enqueue(b)

	// the old sender consumed the wakeup and popped the first entry, then
	// its write failed; the first request was cancelled while disconnected
	<-tr.outReady
	if id, ok := tr.popOutbound(); !ok || id != a.msg.ID {
		t.Fatalf("expected first entry popped, got %d %v", id, ok)
	}
	a.queued.Store(false)
	a.resolve(nil, context.Canceled)
	tr.pending.Delete(a.msg.ID)

	// reconnect: the second request never left the deque and its queued
	// flag is still set, so it alone cannot produce a signal
	tr.requeuePending()

	select {
	case <-tr.outReady:
	default:
		t.Fatalf("sender not woken for entry still in the outbound queue")
	}
	if id, ok := tr.popOutbound(); !ok || id != b.msg.ID {
		t.Fatalf("surviving request lost from the outbound queue: %d %v", id, ok)
	}
}
