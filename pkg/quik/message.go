package quik

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Request commands understood by the terminal side.
const (
	CmdSendTransaction = "sendTransaction"
	CmdNextTransIDs    = "nextTransactionIds"
	CmdPing            = "ping"
)

// Callback event names pushed by the terminal.
const (
	CallbackOrder      = "OnOrder"
	CallbackTrade      = "OnTrade"
	CallbackStopOrder  = "OnStopOrder"
	CallbackTransReply = "OnTransReply"
	CallbackNewCandle  = "OnNewCandle"
)

// CmdTransactionError marks a fault raised while applying a transaction,
// as opposed to a generic terminal-side error.
const CmdTransactionError = "lua_transaction_error"

var (
	ErrStopped         = errors.New("transport stopped")
	ErrTimeout         = errors.New("request timed out")
	ErrCommandMismatch = errors.New("response command does not match request")
	ErrExpired         = errors.New("message validity window elapsed")
	ErrInvalidID       = errors.New("non-positive message id")
)

// RemoteError is a generic fault reported by the terminal.
type RemoteError struct {
	Command string
	Text    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("terminal error (cmd=%s): %s", e.Command, e.Text)
}

// TransactionError is a fault the terminal reported for a specific
// transaction. Callers use it to tell "the terminal rejected this order"
// from "something is wrong with the connection".
type TransactionError struct {
	Text string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Text)
}

// Message is the wire envelope. One JSON object per newline-terminated line;
// requests, responses and callbacks all share it. Responses match requests
// solely by ID.
type Message struct {
	ID       int64           `json:"id"`
	Command  string          `json:"cmd"`
	Created  int64           `json:"t"`
	ValidTo  int64           `json:"v,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	LuaError string          `json:"lua_error,omitempty"`
}

// NewRequest builds a request envelope with a marshaled payload. The
// correlation id is assigned by the transport on send.
func NewRequest(cmd string, payload any) (*Message, error) {
	msg := &Message{
		Command: cmd,
		Created: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", cmd, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// DecodeData unmarshals the envelope payload into out.
func (m *Message) DecodeData(out any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty data", m.Command)
	}
	if err := json.Unmarshal(m.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", m.Command, err)
	}
	return nil
}

// Expired reports whether the validity deadline, when present, has elapsed.
func (m *Message) Expired(now time.Time) bool {
	return m.ValidTo > 0 && now.UnixMilli() > m.ValidTo
}

// Fault maps a remote-reported error to the matching error value, or nil.
func (m *Message) Fault() error {
	if m.LuaError == "" {
		return nil
	}
	if m.Command == CmdTransactionError {
		return &TransactionError{Text: m.LuaError}
	}
	return &RemoteError{Command: m.Command, Text: m.LuaError}
}
