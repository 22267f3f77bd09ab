package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

func TestLimitOrderTransactions(t *testing.T) {
	o := &LimitOrder{
		orderBase: orderBase{
			ClassCode: "TQBR", SecCode: "GAZP", Account: "L01", ClientCode: "C9",
			Side: model.SideSell, Quantity: 40,
		},
		Price:     decimal.RequireFromString("164.37"),
		Condition: model.ExecKillBalance,
		Expiry:    "GTC",
	}

	tx := o.placeTransaction()
	if tx.Action != model.ActionNewOrder {
		t.Errorf("action = %s", tx.Action)
	}
	if tx.Operation != model.OperationSell {
		t.Errorf("operation = %s", tx.Operation)
	}
	if tx.Quantity != 40 || !tx.Price.Equal(o.Price) {
		t.Errorf("qty/price = %d/%s", tx.Quantity, tx.Price)
	}
	if tx.ExecutionCondition != model.ExecKillBalance || tx.ExpiryDate != "GTC" {
		t.Errorf("condition/expiry = %s/%s", tx.ExecutionCondition, tx.ExpiryDate)
	}

	kill := o.killTransaction(777)
	if kill.Action != model.ActionKillOrder || kill.OrderKey != 777 || kill.Quantity != 0 {
		t.Errorf("kill = %+v", kill)
	}
}

func TestLimitOrderMoveModes(t *testing.T) {
	o := &LimitOrder{orderBase: orderBase{Side: model.SideBuy, Quantity: 10}, Price: decimal.NewFromInt(100)}

	cases := []struct {
		name  string
		price decimal.Decimal
		qty   int64
		mode  model.MoveMode
	}{
		{"price only", decimal.NewFromInt(101), 0, model.MoveNewPrice},
		{"qty only", decimal.Decimal{}, 5, model.MoveNewQty},
		{"both", decimal.NewFromInt(101), 5, model.MoveNewPriceAndQty},
	}
	for _, tc := range cases {
		tx := o.moveTransaction(42, tc.price, tc.qty)
		if tx.Action != model.ActionMoveOrders || tx.FirstOrder != 42 {
			t.Errorf("%s: %+v", tc.name, tx)
		}
		if tx.Mode != tc.mode {
			t.Errorf("%s: mode = %d, want %d", tc.name, tx.Mode, tc.mode)
		}
	}
}

func TestStopKindsProduceTheirTransactionShapes(t *testing.T) {
	base := stopBase{
		orderBase: orderBase{ClassCode: "TQBR", SecCode: "GAZP", Side: model.SideBuy, Quantity: 10},
		StopPrice: decimal.NewFromInt(170),
	}

	simple := (&StopOrder{stopBase: base, Price: decimal.NewFromInt(171)}).placeTransaction()
	if simple.Action != model.ActionNewStopOrder || simple.StopOrderKind != model.StopKindSimple {
		t.Errorf("simple stop: %+v", simple)
	}
	if !simple.StopPrice.Equal(base.StopPrice) || !simple.Price.Equal(decimal.NewFromInt(171)) {
		t.Errorf("simple stop prices: %s/%s", simple.StopPrice, simple.Price)
	}

	tp := (&TakeProfitOrder{
		stopBase: base,
		Offset:   decimal.NewFromInt(1), OffsetUnits: model.UnitsPrice,
		Spread: decimal.RequireFromString("0.5"), SpreadUnits: model.UnitsPercents,
	}).placeTransaction()
	if tp.StopOrderKind != model.StopKindTakeProfit {
		t.Errorf("take profit kind = %s", tp.StopOrderKind)
	}
	if tp.OffsetUnits != model.UnitsPrice || tp.SpreadUnits != model.UnitsPercents {
		t.Errorf("take profit units: %s/%s", tp.OffsetUnits, tp.SpreadUnits)
	}

	tpsl := (&TakeProfitStopLimit{
		stopBase:   base,
		StopPrice2: decimal.NewFromInt(160),
		Price:      decimal.NewFromInt(159),
		ActiveFrom: "100000", ActiveTo: "184500",
	}).placeTransaction()
	if tpsl.StopOrderKind != model.StopKindTakeProfitAndStopLimit {
		t.Errorf("tpsl kind = %s", tpsl.StopOrderKind)
	}
	if tpsl.ActiveInTime != "YES" || tpsl.ActiveFromTime != "100000" || tpsl.ActiveToTime != "184500" {
		t.Errorf("tpsl window: %q %q..%q", tpsl.ActiveInTime, tpsl.ActiveFromTime, tpsl.ActiveToTime)
	}

	noWindow := (&TakeProfitStopLimit{stopBase: base}).placeTransaction()
	if noWindow.ActiveInTime != "" {
		t.Errorf("window must be off by default: %q", noWindow.ActiveInTime)
	}

	linked := (&StopLinkedLimit{
		stopBase: base,
		Price:    decimal.NewFromInt(171), LinkedPrice: decimal.NewFromInt(150),
	}).placeTransaction()
	if linked.StopOrderKind != model.StopKindWithLinkedLimitOrder {
		t.Errorf("linked kind = %s", linked.StopOrderKind)
	}
	if !linked.LinkedPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("linked price = %s", linked.LinkedPrice)
	}

	kill := (&StopOrder{stopBase: base}).killTransaction(88)
	if kill.Action != model.ActionKillStopOrder || kill.StopOrderKey != 88 {
		t.Errorf("stop kill: %+v", kill)
	}
}

func TestKillAndMoveGuards(t *testing.T) {
	tr, rpc := newTestTrader(model.TransReply{Status: 3})

	lo := NewOrder(limitDef(10), Callbacks{})
	if err := tr.KillOrder(context.Background(), lo); !errors.Is(err, errNotPlaced) {
		t.Errorf("kill before place: %v", err)
	}
	if err := tr.MoveOrder(context.Background(), lo, decimal.NewFromInt(1), 0); !errors.Is(err, errNotPlaced) {
		t.Errorf("move before place: %v", err)
	}

	lo, _ = placeLimit(t, tr, 10, 1001)
	if err := tr.KillOrder(context.Background(), lo); err != nil {
		t.Errorf("kill: %v", err)
	}
	if err := tr.MoveOrder(context.Background(), lo, decimal.NewFromInt(2), 0); err != nil {
		t.Errorf("move: %v", err)
	}
	sent := rpc.sent
	last := sent[len(sent)-1]
	if last.Action != model.ActionMoveOrders {
		t.Errorf("last transaction = %s", last.Action)
	}

	stop := NewOrder(&StopOrder{stopBase: stopBase{orderBase: orderBase{Quantity: 5}}}, Callbacks{})
	if err := tr.MoveOrder(context.Background(), stop, decimal.NewFromInt(1), 0); !errors.Is(err, errNotMovable) {
		t.Errorf("move stop: %v", err)
	}

	tr.handleOrderRecord(&model.OrderRecord{OrderNum: 1001, Quantity: 10, Balance: 10, Flags: wireCanceled})
	if err := tr.KillOrder(context.Background(), lo); !errors.Is(err, errTerminal) {
		t.Errorf("kill after terminal: %v", err)
	}

	if err := tr.PlaceOrder(context.Background(), lo); !errors.Is(err, errAlreadyPlaced) {
		t.Errorf("double place: %v", err)
	}
}
