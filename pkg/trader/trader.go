package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joripage/go_util/pkg/shardqueue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/pkg/quik"
	eventstore "github.com/x5500/QUIKSharp-sub001/pkg/trader/event_store"
	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

const (
	numShards = 16
	queueSize = 1_000_000
)

// rpc is the request/response surface the engine needs from the transport.
type rpc interface {
	Request(ctx context.Context, cmd string, payload, out any) error
}

// EventPublisher receives every derived lifecycle event, e.g. for a broker
// feed. Failures are logged, never propagated into order processing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *model.LifecycleEvent) error
}

// Trader is the order-lifecycle reconciliation engine. It owns the canonical
// per-order state, turns the unordered, duplication-prone notification
// stream into exactly-once lifecycle events, and exposes the place/kill/move
// primitives to application code.
//
// The per-order tables are the only shared mutable structures; notifications
// are sharded by order number, so one order's updates are serialized while
// distinct orders proceed in parallel.
type Trader struct {
	rpc rpc
	ids *quik.Allocator

	limitOrders sync.Map // orderNum -> *LogicalOrder
	stopOrders  sync.Map // orderNum -> *LogicalOrder
	byTransID   sync.Map // transID  -> *LogicalOrder

	journal   eventstore.EventStore
	publisher EventPublisher

	shard *shardqueue.Shardqueue
}

type notification struct {
	order *model.OrderRecord
	trade *model.TradeRecord
	stop  *model.StopOrderRecord
	reply *model.TransReply
}

func New(rpc rpc, ids *quik.Allocator, journal eventstore.EventStore, publisher EventPublisher) *Trader {
	if journal == nil {
		journal = eventstore.NewInMemoryEventStore()
	}
	t := &Trader{
		rpc:       rpc,
		ids:       ids,
		journal:   journal,
		publisher: publisher,
	}
	t.shard = shardqueue.NewShardQueue(numShards, queueSize)
	t.shard.Start(func(v interface{}) error {
		if n, ok := v.(*notification); ok {
			t.apply(n)
		}
		return nil
	})
	return t
}

// Journal exposes the lifecycle event store.
func (t *Trader) Journal() eventstore.EventStore {
	return t.journal
}

// Bind subscribes the engine to the transport's notification feed.
func (t *Trader) Bind(events *quik.Pubsub) {
	events.Subscribe(quik.EventOrder, func(msg *quik.Message) {
		rec := &model.OrderRecord{}
		if !decodeData(msg, rec) {
			return
		}
		t.dispatch(rec.OrderNum, &notification{order: rec})
	})
	events.Subscribe(quik.EventTrade, func(msg *quik.Message) {
		rec := &model.TradeRecord{}
		if !decodeData(msg, rec) {
			return
		}
		t.dispatch(rec.OrderNum, &notification{trade: rec})
	})
	events.Subscribe(quik.EventStopOrder, func(msg *quik.Message) {
		rec := &model.StopOrderRecord{}
		if !decodeData(msg, rec) {
			return
		}
		t.dispatch(rec.OrderNum, &notification{stop: rec})
	})
	events.Subscribe(quik.EventTransReply, func(msg *quik.Message) {
		rec := &model.TransReply{}
		if !decodeData(msg, rec) {
			return
		}
		t.dispatch(rec.OrderNum, &notification{reply: rec})
	})
}

func (t *Trader) dispatch(orderNum int64, n *notification) {
	t.shard.Shard(fmt.Sprintf("%d", orderNum), n)
}

// PlaceOrder submits the order's place transaction and registers the order
// under its assigned number. A timed-out or cancelled place may still have
// been applied remotely; the order stays registered under its transaction id
// and is adopted when a notification names it.
func (t *Trader) PlaceOrder(ctx context.Context, lo *LogicalOrder) error {
	if lo.State() != StateCreated {
		return errAlreadyPlaced
	}

	transID, err := t.ids.Next(ctx)
	if err != nil {
		return fmt.Errorf("allocate trans id: %w", err)
	}
	lo.setTransID(transID)
	t.byTransID.Store(transID, lo)

	tx := lo.def.placeTransaction()
	tx.TransID = transID

	var reply model.TransReply
	if err := t.rpc.Request(ctx, quik.CmdSendTransaction, tx, &reply); err != nil {
		var txErr *quik.TransactionError
		if errors.As(err, &txErr) {
			t.byTransID.Delete(transID)
			t.emit(ctx, lo, lo.markRejected())
			return err
		}
		// timeout, cancellation or transport fault: the terminal may still
		// have applied the transaction, so keep the registration and adopt
		// the order if its number shows up later
		return err
	}

	if !reply.Accepted() {
		t.byTransID.Delete(transID)
		t.emit(ctx, lo, lo.markRejected())
		return &quik.TransactionError{Text: reply.ResultMsg}
	}
	if reply.OrderNum != 0 {
		t.register(lo, reply.OrderNum)
		t.emit(ctx, lo, lo.markPlaced(reply.OrderNum))
	}
	return nil
}

// KillOrder submits the kill transaction for the order's live leg. The
// terminal state itself arrives through notifications.
func (t *Trader) KillOrder(ctx context.Context, lo *LogicalOrder) error {
	if lo.State().Terminal() {
		return errTerminal
	}
	num := lo.OrderNum()
	if num == 0 {
		return errNotPlaced
	}

	transID, err := t.ids.Next(ctx)
	if err != nil {
		return fmt.Errorf("allocate trans id: %w", err)
	}
	tx := lo.def.killTransaction(num)
	tx.TransID = transID

	var reply model.TransReply
	if err := t.rpc.Request(ctx, quik.CmdSendTransaction, tx, &reply); err != nil {
		return err
	}
	if !reply.Accepted() {
		return &quik.TransactionError{Text: reply.ResultMsg}
	}
	return nil
}

// MoveOrder changes price and/or quantity of a resting limit order. A zero
// newQty keeps the quantity; a zero newPrice keeps the price.
func (t *Trader) MoveOrder(ctx context.Context, lo *LogicalOrder, newPrice decimal.Decimal, newQty int64) error {
	m, ok := lo.def.(mover)
	if !ok {
		return errNotMovable
	}
	if lo.State().Terminal() {
		return errTerminal
	}
	num := lo.OrderNum()
	if num == 0 {
		return errNotPlaced
	}

	transID, err := t.ids.Next(ctx)
	if err != nil {
		return fmt.Errorf("allocate trans id: %w", err)
	}
	tx := m.moveTransaction(num, newPrice, newQty)
	tx.TransID = transID

	var reply model.TransReply
	if err := t.rpc.Request(ctx, quik.CmdSendTransaction, tx, &reply); err != nil {
		return err
	}
	if !reply.Accepted() {
		return &quik.TransactionError{Text: reply.ResultMsg}
	}
	return nil
}

func (t *Trader) register(lo *LogicalOrder, orderNum int64) {
	if lo.def.isStop() {
		t.stopOrders.Store(orderNum, lo)
	} else {
		t.limitOrders.Store(orderNum, lo)
	}
}

func (t *Trader) lookupLimit(orderNum int64) *LogicalOrder {
	if v, ok := t.limitOrders.Load(orderNum); ok {
		return v.(*LogicalOrder)
	}
	return nil
}

func (t *Trader) lookupStop(orderNum int64) *LogicalOrder {
	if v, ok := t.stopOrders.Load(orderNum); ok {
		return v.(*LogicalOrder)
	}
	return nil
}

func decodeData(msg *quik.Message, out any) bool {
	if err := msg.DecodeData(out); err != nil {
		zap.S().Warnw("dropping undecodable notification", "cmd", msg.Command, "err", err)
		return false
	}
	return true
}
