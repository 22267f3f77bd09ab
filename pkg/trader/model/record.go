package model

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the decoded lifecycle facet of an exchange order record.
type OrderStatus string

const (
	StatusActive    OrderStatus = "Active"
	StatusCompleted OrderStatus = "Completed"
	StatusCanceled  OrderStatus = "Canceled"
	StatusRejected  OrderStatus = "Rejected"
)

// StopStatus is the decoded lifecycle facet of a stop-order record.
// Executed means the stop fired and spawned its child limit order.
type StopStatus string

const (
	StopActive   StopStatus = "Active"
	StopExecuted StopStatus = "Executed"
	StopCanceled StopStatus = "Canceled"
	StopRejected StopStatus = "Rejected"
)

// Raw flag bits as the terminal packs them. Decoded once at the notification
// boundary; nothing outside this package looks at the masks.
const (
	flagActive   = 1 << 0
	flagCanceled = 1 << 1
	flagSell     = 1 << 2
	flagLimit    = 1 << 3
	flagRejected = 1 << 9
)

// OrderRecord is a limit order as reported by the terminal. Identity is
// OrderNum once assigned; before that the order is known by TransID.
type OrderRecord struct {
	OrderNum   int64           `json:"order_num"`
	TransID    int64           `json:"trans_id"`
	ClassCode  string          `json:"class_code"`
	SecCode    string          `json:"sec_code"`
	Account    string          `json:"account"`
	ClientCode string          `json:"client_code"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"qty"`
	Balance    int64           `json:"balance"`
	Flags      uint32          `json:"flags"`

	// LinkedOrder names the stop order that server-side spawned this limit
	// order, zero otherwise.
	LinkedOrder int64 `json:"linked_order"`
}

func (r *OrderRecord) Side() Side {
	if r.Flags&flagSell != 0 {
		return SideSell
	}
	return SideBuy
}

func (r *OrderRecord) Status() OrderStatus {
	switch {
	case r.Flags&flagActive != 0:
		return StatusActive
	case r.Flags&flagRejected != 0:
		return StatusRejected
	case r.Flags&flagCanceled != 0:
		return StatusCanceled
	default:
		return StatusCompleted
	}
}

// StopOrderRecord is a stop order as reported by the terminal.
type StopOrderRecord struct {
	OrderNum   int64           `json:"order_num"`
	TransID    int64           `json:"trans_id"`
	ClassCode  string          `json:"class_code"`
	SecCode    string          `json:"sec_code"`
	Account    string          `json:"account"`
	ClientCode string          `json:"client_code"`
	StopPrice  decimal.Decimal `json:"condition_price"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"qty"`
	Balance    int64           `json:"balance"`
	Flags      uint32          `json:"flags"`

	// CoOrderNum references the child limit order spawned on activation.
	CoOrderNum int64 `json:"co_order_num"`
}

func (r *StopOrderRecord) Side() Side {
	if r.Flags&flagSell != 0 {
		return SideSell
	}
	return SideBuy
}

// Status distinguishes plain cancellation from activation: a stop that left
// the active state with a spawned child order has executed, not died.
func (r *StopOrderRecord) Status() StopStatus {
	switch {
	case r.Flags&flagActive != 0:
		return StopActive
	case r.Flags&flagRejected != 0:
		return StopRejected
	case r.CoOrderNum != 0:
		return StopExecuted
	case r.Flags&flagCanceled != 0:
		return StopCanceled
	default:
		return StopExecuted
	}
}

// TradeRecord reports an increment of filled volume for an order. Trades may
// arrive before, after, or duplicated relative to balance updates.
type TradeRecord struct {
	TradeNum  int64           `json:"trade_num"`
	OrderNum  int64           `json:"order_num"`
	ClassCode string          `json:"class_code"`
	SecCode   string          `json:"sec_code"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"qty"`
}

// TransReply is the terminal's reply to a submitted transaction.
type TransReply struct {
	TransID   int64  `json:"trans_id"`
	Status    int    `json:"status"`
	OrderNum  int64  `json:"order_num"`
	ResultMsg string `json:"result_msg"`
}

// Accepted reports whether the trading system applied the transaction.
func (r *TransReply) Accepted() bool {
	return r.Status == 3
}

// Candle is one bar of the OnNewCandle feed.
type Candle struct {
	ClassCode string          `json:"class_code"`
	SecCode   string          `json:"sec_code"`
	Interval  int             `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Time      int64           `json:"time"`
}
