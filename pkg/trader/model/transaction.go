package model

import "github.com/shopspring/decimal"

type TransactionAction string

const (
	ActionNewOrder      TransactionAction = "NEW_ORDER"
	ActionNewStopOrder  TransactionAction = "NEW_STOP_ORDER"
	ActionKillOrder     TransactionAction = "KILL_ORDER"
	ActionKillStopOrder TransactionAction = "KILL_STOP_ORDER"
	ActionMoveOrders    TransactionAction = "MOVE_ORDERS"
)

type Operation string

const (
	OperationBuy  Operation = "B"
	OperationSell Operation = "S"
)

func (s Side) Operation() Operation {
	if s == SideSell {
		return OperationSell
	}
	return OperationBuy
}

type ExecutionCondition string

const (
	ExecPutInQueue  ExecutionCondition = "PUT_IN_QUEUE"
	ExecFillOrKill  ExecutionCondition = "FILL_OR_KILL"
	ExecKillBalance ExecutionCondition = "KILL_BALANCE"
)

type StopOrderKind string

const (
	StopKindSimple                 StopOrderKind = "SIMPLE_STOP_ORDER"
	StopKindTakeProfit             StopOrderKind = "TAKE_PROFIT_STOP_ORDER"
	StopKindTakeProfitAndStopLimit StopOrderKind = "TAKE_PROFIT_AND_STOP_LIMIT_ORDER"
	StopKindWithLinkedLimitOrder   StopOrderKind = "WITH_LINKED_LIMIT_ORDER"
)

type OffsetUnits string

const (
	UnitsPrice    OffsetUnits = "PRICE_UNITS"
	UnitsPercents OffsetUnits = "PERCENTS"
)

// MoveMode selects which attributes a MOVE_ORDERS transaction changes.
type MoveMode int

const (
	MoveNewPriceAndQty MoveMode = 0
	MoveNewPrice       MoveMode = 1
	MoveNewQty         MoveMode = 2
)

// Transaction is one wire transaction submitted via sendTransaction. Field
// names follow the terminal's transaction dictionary.
type Transaction struct {
	TransID    int64             `json:"TRANS_ID"`
	Action     TransactionAction `json:"ACTION"`
	ClassCode  string            `json:"CLASSCODE,omitempty"`
	SecCode    string            `json:"SECCODE,omitempty"`
	Account    string            `json:"ACCOUNT,omitempty"`
	ClientCode string            `json:"CLIENT_CODE,omitempty"`
	Operation  Operation         `json:"OPERATION,omitempty"`

	Price    decimal.Decimal `json:"PRICE,omitempty"`
	Quantity int64           `json:"QUANTITY,omitempty"`

	ExecutionCondition ExecutionCondition `json:"EXECUTION_CONDITION,omitempty"`
	ExpiryDate         string             `json:"EXPIRY_DATE,omitempty"`

	// stop-order fields
	StopOrderKind StopOrderKind   `json:"STOP_ORDER_KIND,omitempty"`
	StopPrice     decimal.Decimal `json:"STOPPRICE,omitempty"`
	StopPrice2    decimal.Decimal `json:"STOPPRICE2,omitempty"`
	Offset        decimal.Decimal `json:"OFFSET,omitempty"`
	OffsetUnits   OffsetUnits     `json:"OFFSET_UNITS,omitempty"`
	Spread        decimal.Decimal `json:"SPREAD,omitempty"`
	SpreadUnits   OffsetUnits     `json:"SPREAD_UNITS,omitempty"`
	LinkedPrice   decimal.Decimal `json:"LINKED_ORDER_PRICE,omitempty"`

	// activation-time window
	ActiveInTime   string `json:"IS_ACTIVE_IN_TIME,omitempty"`
	ActiveFromTime string `json:"ACTIVE_FROM_TIME,omitempty"`
	ActiveToTime   string `json:"ACTIVE_TO_TIME,omitempty"`

	// kill fields
	OrderKey     int64 `json:"ORDER_KEY,omitempty"`
	StopOrderKey int64 `json:"STOP_ORDER_KEY,omitempty"`

	// move fields
	Mode        MoveMode        `json:"MODE,omitempty"`
	FirstOrder  int64           `json:"FIRST_ORDER_NUMBER,omitempty"`
	NewPrice    decimal.Decimal `json:"FIRST_ORDER_NEW_PRICE,omitempty"`
	NewQuantity int64           `json:"FIRST_ORDER_NEW_QUANTITY,omitempty"`
}
