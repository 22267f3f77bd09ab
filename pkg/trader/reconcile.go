package trader

import (
	"context"

	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

// apply runs on a shard worker; notifications for one order number always
// land on the same shard, so per-order processing is serialized here while
// distinct orders proceed on other shards.
func (t *Trader) apply(n *notification) {
	switch {
	case n.order != nil:
		t.handleOrderRecord(n.order)
	case n.trade != nil:
		t.handleTrade(n.trade)
	case n.stop != nil:
		t.handleStopOrder(n.stop)
	case n.reply != nil:
		t.handleTransReply(n.reply)
	}
}

// handleOrderRecord reconciles a limit-order report: a balance decrease
// implies newly filled volume, a cancel/reject flag a terminal outcome.
// Records naming an unregistered number are adopted by transaction id if a
// place request caused them, attached as a composite child leg if a stop
// spawned them, and ignored otherwise. Ignoring is deliberate: a late or
// foreign order report is not an error.
func (t *Trader) handleOrderRecord(rec *model.OrderRecord) {
	lo := t.lookupLimit(rec.OrderNum)
	if lo == nil {
		lo = t.adoptByTransID(rec.TransID, rec.OrderNum, false)
	}
	if lo == nil && rec.LinkedOrder != 0 {
		lo = t.attachChildLeg(rec)
	}
	if lo == nil {
		zap.S().Debugw("ignoring report for unknown order", "order_num", rec.OrderNum, "trans_id", rec.TransID)
		return
	}
	t.emit(context.Background(), lo, lo.applyBalance(rec.Quantity, rec.Balance, rec.Status()))
}

func (t *Trader) handleTrade(rec *model.TradeRecord) {
	lo := t.lookupLimit(rec.OrderNum)
	if lo == nil {
		zap.S().Debugw("ignoring trade for unknown order", "order_num", rec.OrderNum, "trade_num", rec.TradeNum)
		return
	}
	t.emit(context.Background(), lo, lo.applyTrade(rec.TradeNum, rec.Quantity))
}

// handleStopOrder reconciles a stop-order report. Activation (as opposed to
// plain cancellation) fires Executed and hands fill tracking over to the
// child limit leg; the stop leg is excluded from fill accounting entirely.
func (t *Trader) handleStopOrder(rec *model.StopOrderRecord) {
	lo := t.lookupStop(rec.OrderNum)
	if lo == nil {
		lo = t.adoptByTransID(rec.TransID, rec.OrderNum, true)
	}
	if lo == nil {
		zap.S().Debugw("ignoring report for unknown stop order", "order_num", rec.OrderNum, "trans_id", rec.TransID)
		return
	}

	switch rec.Status() {
	case model.StopActive:
	case model.StopExecuted:
		if rec.CoOrderNum != 0 {
			// route the child leg's future reports to this composite
			t.limitOrders.Store(rec.CoOrderNum, lo)
		}
		t.emit(context.Background(), lo, lo.markExecuted(rec.CoOrderNum))
	case model.StopCanceled:
		t.emit(context.Background(), lo, lo.markKilled())
	case model.StopRejected:
		t.emit(context.Background(), lo, lo.markRejected())
	}
}

// handleTransReply covers replies that arrive on the push channel: adoption
// for accepted transactions whose response was superseded, rejection
// otherwise.
func (t *Trader) handleTransReply(rec *model.TransReply) {
	v, ok := t.byTransID.Load(rec.TransID)
	if !ok {
		return
	}
	lo := v.(*LogicalOrder)

	if !rec.Accepted() {
		if lo.State() == StateCreated {
			t.byTransID.Delete(rec.TransID)
			t.emit(context.Background(), lo, lo.markRejected())
		}
		return
	}
	if rec.OrderNum != 0 {
		t.register(lo, rec.OrderNum)
		t.emit(context.Background(), lo, lo.markPlaced(rec.OrderNum))
	}
}

// adoptByTransID registers an order the engine has not yet seen under its
// number, covering the place response racing its first notification and the
// place request that timed out but was still applied remotely.
func (t *Trader) adoptByTransID(transID, orderNum int64, stop bool) *LogicalOrder {
	if transID == 0 {
		return nil
	}
	v, ok := t.byTransID.Load(transID)
	if !ok {
		return nil
	}
	lo := v.(*LogicalOrder)
	if lo.def.isStop() != stop {
		return nil
	}
	t.register(lo, orderNum)
	t.emit(context.Background(), lo, lo.markPlaced(orderNum))
	return lo
}

// attachChildLeg binds a limit record whose reference field names a tracked
// stop order as that composite's child leg. The record may outrun the stop's
// activation report; a spawned child means the stop fired, so Executed is
// derived here when still outstanding.
func (t *Trader) attachChildLeg(rec *model.OrderRecord) *LogicalOrder {
	lo := t.lookupStop(rec.LinkedOrder)
	if lo == nil {
		return nil
	}
	if !lo.attachChild(rec.OrderNum, rec.Quantity) {
		return nil
	}
	t.limitOrders.Store(rec.OrderNum, lo)
	t.emit(context.Background(), lo, lo.markExecuted(rec.OrderNum))
	return lo
}

// emit journals each derived event, forwards it to the publisher and fires
// the order's callback.
func (t *Trader) emit(ctx context.Context, lo *LogicalOrder, ems []emission) {
	for _, em := range ems {
		ev := model.NewLifecycleEvent(em.kind, lo.TransID(), lo.OrderNum(), em.delta, lo.QtyTraded(), lo.QtyLeft())
		t.journal.AddEvent(ev)
		if t.publisher != nil {
			if err := t.publisher.PublishEvent(ctx, ev); err != nil {
				zap.S().Warnw("lifecycle event publish failed", "event_id", ev.EventID, "err", err)
			}
		}

		switch em.kind {
		case model.LifecyclePlaced:
			if lo.cb.OnPlaced != nil {
				lo.cb.OnPlaced()
			}
		case model.LifecyclePartial:
			if lo.cb.OnPartial != nil {
				lo.cb.OnPartial(em.delta)
			}
		case model.LifecycleExecuted:
			if lo.cb.OnExecuted != nil {
				lo.cb.OnExecuted()
			}
		case model.LifecycleFilled:
			if lo.cb.OnFilled != nil {
				lo.cb.OnFilled()
			}
		case model.LifecycleKilled, model.LifecycleRejected:
			// rejection shares the kill signal; State() keeps the distinction
			if lo.cb.OnKilled != nil {
				lo.cb.OnKilled()
			}
		}
	}
}
