package trader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

// State is the application-visible lifecycle of a LogicalOrder.
type State string

const (
	StateCreated         State = "Created"
	StatePlaced          State = "Placed"
	StatePartiallyFilled State = "PartiallyFilled"
	StateExecuted        State = "Executed" // stop leg fired, child leg live
	StateFilled          State = "Filled"
	StateKilled          State = "Killed"
	StateRejected        State = "Rejected"
)

func (s State) Terminal() bool {
	return s == StateFilled || s == StateKilled || s == StateRejected
}

// Callbacks are the per-order notifications delivered to application code.
// Rejection is delivered through OnKilled; State() still reports
// StateRejected for callers that need the distinction.
type Callbacks struct {
	OnPlaced   func()
	OnPartial  func(delta int64)
	OnExecuted func()
	OnFilled   func()
	OnKilled   func()
}

type emission struct {
	kind  model.LifecycleKind
	delta int64
}

// LogicalOrder wraps one order definition and its reconciled runtime state:
// one exchange record for plain kinds, a stop leg plus a child limit leg for
// the composite. All mutation happens under the per-order mutex inside the
// engine; qtyTraded + qtyLeft == originalQty holds at every instant.
type LogicalOrder struct {
	def OrderDef
	cb  Callbacks

	mu       sync.Mutex
	transID  int64
	orderNum int64
	childNum int64
	state    State
	executed bool // stop leg activation seen, fires Executed once

	// fill accounting: accounted is the monotonic "qty accounted for"
	// counter; tradesSum and the implied balance delta both push it via max,
	// which makes the two signal types commutative and idempotent.
	legQty     int64
	tradesSum  int64
	accounted  int64
	seenTrades map[int64]struct{}
	halted     bool
}

func NewOrder(def OrderDef, cb Callbacks) *LogicalOrder {
	return &LogicalOrder{
		def:        def,
		cb:         cb,
		state:      StateCreated,
		legQty:     def.Qty(),
		seenTrades: make(map[int64]struct{}),
	}
}

func (o *LogicalOrder) Def() OrderDef { return o.def }

func (o *LogicalOrder) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *LogicalOrder) TransID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transID
}

func (o *LogicalOrder) OrderNum() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderNum
}

// ChildOrderNum returns the composite child leg's number, zero until the
// stop leg activates.
func (o *LogicalOrder) ChildOrderNum() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.childNum
}

func (o *LogicalOrder) OriginalQty() int64 { return o.def.Qty() }

func (o *LogicalOrder) QtyTraded() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.accounted
}

func (o *LogicalOrder) QtyLeft() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.def.Qty() - o.accounted
}

func (o *LogicalOrder) setTransID(id int64) {
	o.mu.Lock()
	o.transID = id
	o.mu.Unlock()
}

// markPlaced registers the assigned order number. Emits Placed once; a
// second registration attempt (response raced with a notification) is a
// no-op.
func (o *LogicalOrder) markPlaced(orderNum int64) []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.orderNum == 0 {
		o.orderNum = orderNum
	}
	if o.state != StateCreated {
		return nil
	}
	o.state = StatePlaced
	return []emission{{kind: model.LifecyclePlaced}}
}

// applyBalance folds an order-record balance update into the fill counter.
// legQty is the reporting leg's original quantity.
func (o *LogicalOrder) applyBalance(legQty, balance int64, status model.OrderStatus) []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.halted || o.state.Terminal() {
		return nil
	}
	if legQty > 0 {
		o.legQty = legQty
	}

	implied := o.legQty - balance
	if implied < 0 || balance < 0 {
		return o.haltLocked("balance above leg quantity", implied, balance)
	}

	var out []emission
	out = o.accountLocked(out, implied)

	switch status {
	case model.StatusRejected:
		o.state = StateRejected
		out = append(out, emission{kind: model.LifecycleRejected})
	case model.StatusCanceled:
		o.state = StateKilled
		out = append(out, emission{kind: model.LifecycleKilled})
	default:
		if balance == 0 {
			o.state = StateFilled
			out = append(out, emission{kind: model.LifecycleFilled})
		}
	}
	return out
}

// applyTrade folds a trade report into the fill counter. Duplicate trade
// numbers are dropped; a trade restating volume already implied by a balance
// update adds nothing.
func (o *LogicalOrder) applyTrade(tradeNum, qty int64) []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.halted || o.state.Terminal() {
		return nil
	}
	if qty <= 0 {
		return o.haltLocked("non-positive trade quantity", qty, 0)
	}
	if tradeNum != 0 {
		if _, dup := o.seenTrades[tradeNum]; dup {
			return nil
		}
		o.seenTrades[tradeNum] = struct{}{}
	}

	o.tradesSum += qty
	if o.tradesSum > o.legQty {
		return o.haltLocked("trades exceed leg quantity", o.tradesSum, o.legQty)
	}

	var out []emission
	out = o.accountLocked(out, o.tradesSum)
	if o.accounted == o.legQty {
		o.state = StateFilled
		out = append(out, emission{kind: model.LifecycleFilled})
	}
	return out
}

// accountLocked raises the accounted counter to target if that reveals new
// volume, emitting one Partial for the newly revealed units.
func (o *LogicalOrder) accountLocked(out []emission, target int64) []emission {
	if target <= o.accounted {
		return out
	}
	delta := target - o.accounted
	o.accounted = target
	o.state = StatePartiallyFilled
	return append(out, emission{kind: model.LifecyclePartial, delta: delta})
}

// markExecuted records stop-leg activation. The stop leg is terminal for
// fill accounting from here on; the child leg drives the rest.
func (o *LogicalOrder) markExecuted(childNum int64) []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if childNum != 0 && o.childNum == 0 {
		o.childNum = childNum
	}
	if o.halted || o.state.Terminal() || o.executed {
		return nil
	}
	o.executed = true
	o.state = StateExecuted
	return []emission{{kind: model.LifecycleExecuted}}
}

// attachChild binds the server-spawned limit order as the composite's live
// leg. Reports whether the record belongs to this composite. The child may
// show up before the stop leg's activation record; its existence already
// proves the stop fired.
func (o *LogicalOrder) attachChild(orderNum, childQty int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.childNum != 0 && o.childNum != orderNum {
		return false
	}
	if o.childNum == 0 {
		if o.halted || o.state.Terminal() {
			return false
		}
		o.childNum = orderNum
	}
	if childQty > 0 {
		o.legQty = childQty
	}
	return true
}

func (o *LogicalOrder) markKilled() []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.halted || o.state.Terminal() {
		return nil
	}
	o.state = StateKilled
	return []emission{{kind: model.LifecycleKilled}}
}

func (o *LogicalOrder) markRejected() []emission {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.halted || o.state.Terminal() {
		return nil
	}
	o.state = StateRejected
	return []emission{{kind: model.LifecycleRejected}}
}

// haltLocked stops further processing of this order after an accounting
// invariant violation. Other orders are unaffected.
func (o *LogicalOrder) haltLocked(reason string, got, limit int64) []emission {
	o.halted = true
	zap.S().Errorw("fill accounting violation, halting order",
		"reason", reason, "order_num", o.orderNum, "trans_id", o.transID,
		"got", got, "limit", limit)
	return nil
}
