package trader

import (
	"github.com/shopspring/decimal"

	"github.com/x5500/QUIKSharp-sub001/pkg/trader/model"
)

// OrderDef is one of the closed set of order kinds. A definition is a pure
// transaction builder; runtime state lives in LogicalOrder.
type OrderDef interface {
	Security() (classCode, secCode string)
	Qty() int64
	placeTransaction() *model.Transaction
	killTransaction(orderNum int64) *model.Transaction
	isStop() bool
}

// mover is implemented by kinds whose resting order can be moved in place.
type mover interface {
	moveTransaction(orderNum int64, newPrice decimal.Decimal, newQty int64) *model.Transaction
}

// orderBase carries the fields every kind shares.
type orderBase struct {
	ClassCode  string
	SecCode    string
	Account    string
	ClientCode string
	Side       model.Side
	Quantity   int64
}

func (b *orderBase) Security() (string, string) { return b.ClassCode, b.SecCode }
func (b *orderBase) Qty() int64                 { return b.Quantity }

func (b *orderBase) transaction(action model.TransactionAction) *model.Transaction {
	return &model.Transaction{
		Action:     action,
		ClassCode:  b.ClassCode,
		SecCode:    b.SecCode,
		Account:    b.Account,
		ClientCode: b.ClientCode,
		Operation:  b.Side.Operation(),
		Quantity:   b.Quantity,
	}
}

// LimitOrder rests at Price until filled or killed; the only movable kind.
type LimitOrder struct {
	orderBase
	Price     decimal.Decimal
	Condition model.ExecutionCondition
	Expiry    string
}

func (o *LimitOrder) isStop() bool { return false }

func (o *LimitOrder) placeTransaction() *model.Transaction {
	tx := o.transaction(model.ActionNewOrder)
	tx.Price = o.Price
	tx.ExecutionCondition = o.Condition
	tx.ExpiryDate = o.Expiry
	return tx
}

func (o *LimitOrder) killTransaction(orderNum int64) *model.Transaction {
	tx := o.transaction(model.ActionKillOrder)
	tx.Quantity = 0
	tx.OrderKey = orderNum
	return tx
}

func (o *LimitOrder) moveTransaction(orderNum int64, newPrice decimal.Decimal, newQty int64) *model.Transaction {
	tx := o.transaction(model.ActionMoveOrders)
	tx.Quantity = 0
	tx.FirstOrder = orderNum
	tx.NewPrice = newPrice
	tx.NewQuantity = newQty
	switch {
	case newQty == 0:
		tx.Mode = model.MoveNewPrice
	case newPrice.IsZero():
		tx.Mode = model.MoveNewQty
	default:
		tx.Mode = model.MoveNewPriceAndQty
	}
	return tx
}

// stopBase extends orderBase with the fields all stop kinds share.
type stopBase struct {
	orderBase
	StopPrice decimal.Decimal
	Expiry    string
}

func (b *stopBase) isStop() bool { return true }

func (b *stopBase) stopTransaction(kind model.StopOrderKind) *model.Transaction {
	tx := b.transaction(model.ActionNewStopOrder)
	tx.StopOrderKind = kind
	tx.StopPrice = b.StopPrice
	tx.ExpiryDate = b.Expiry
	return tx
}

func (b *stopBase) killTransaction(orderNum int64) *model.Transaction {
	tx := b.transaction(model.ActionKillStopOrder)
	tx.Quantity = 0
	tx.StopOrderKey = orderNum
	return tx
}

// StopOrder converts into a market/limit order at Price once StopPrice is
// crossed.
type StopOrder struct {
	stopBase
	Price decimal.Decimal
}

func (o *StopOrder) placeTransaction() *model.Transaction {
	tx := o.stopTransaction(model.StopKindSimple)
	tx.Price = o.Price
	return tx
}

// TakeProfitOrder trails the market by Offset and fires with Spread slippage.
type TakeProfitOrder struct {
	stopBase
	Offset      decimal.Decimal
	OffsetUnits model.OffsetUnits
	Spread      decimal.Decimal
	SpreadUnits model.OffsetUnits
}

func (o *TakeProfitOrder) placeTransaction() *model.Transaction {
	tx := o.stopTransaction(model.StopKindTakeProfit)
	tx.Offset = o.Offset
	tx.OffsetUnits = o.OffsetUnits
	tx.Spread = o.Spread
	tx.SpreadUnits = o.SpreadUnits
	return tx
}

// TakeProfitStopLimit carries both a take-profit and a stop-limit condition,
// with an optional intraday activation window.
type TakeProfitStopLimit struct {
	stopBase
	StopPrice2  decimal.Decimal
	Price       decimal.Decimal
	Offset      decimal.Decimal
	OffsetUnits model.OffsetUnits
	Spread      decimal.Decimal
	SpreadUnits model.OffsetUnits

	ActiveFrom string // HHMMSS, both empty means always active
	ActiveTo   string
}

func (o *TakeProfitStopLimit) placeTransaction() *model.Transaction {
	tx := o.stopTransaction(model.StopKindTakeProfitAndStopLimit)
	tx.StopPrice2 = o.StopPrice2
	tx.Price = o.Price
	tx.Offset = o.Offset
	tx.OffsetUnits = o.OffsetUnits
	tx.Spread = o.Spread
	tx.SpreadUnits = o.SpreadUnits
	if o.ActiveFrom != "" || o.ActiveTo != "" {
		tx.ActiveInTime = "YES"
		tx.ActiveFromTime = o.ActiveFrom
		tx.ActiveToTime = o.ActiveTo
	}
	return tx
}

// StopLinkedLimit is the composite kind: a stop leg that, on activation,
// server-side spawns a child limit order the engine then tracks as the
// composite's live leg.
type StopLinkedLimit struct {
	stopBase
	Price       decimal.Decimal // stop leg execution price
	LinkedPrice decimal.Decimal // child limit leg price
}

func (o *StopLinkedLimit) placeTransaction() *model.Transaction {
	tx := o.stopTransaction(model.StopKindWithLinkedLimitOrder)
	tx.Price = o.Price
	tx.LinkedPrice = o.LinkedPrice
	return tx
}
