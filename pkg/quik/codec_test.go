package quik

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := NewRequest(CmdSendTransaction, map[string]string{"ACTION": "NEW_ORDER"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	msg.ID = 42

	line, err := encodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		t.Fatalf("encoded line must end with newline")
	}

	got, err := decodeMessage(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 42 || got.Command != CmdSendTransaction {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDecodeMalformedLine(t *testing.T) {
	if _, err := decodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeMessage([]byte("   ")); err == nil {
		t.Fatalf("expected error for blank line")
	}
	if _, err := decodeMessage([]byte(`{"id":1}`)); err == nil {
		t.Fatalf("expected error for missing cmd")
	}
}

func TestMessageExpired(t *testing.T) {
	now := time.Now()
	msg := &Message{Command: CmdPing}
	if msg.Expired(now) {
		t.Fatalf("message without validity window must not expire")
	}

	msg.ValidTo = now.Add(-time.Second).UnixMilli()
	if !msg.Expired(now) {
		t.Fatalf("elapsed validity window must expire")
	}

	msg.ValidTo = now.Add(time.Minute).UnixMilli()
	if msg.Expired(now) {
		t.Fatalf("future validity window must not expire")
	}
}

func TestMessageFault(t *testing.T) {
	msg := &Message{Command: CmdSendTransaction}
	if msg.Fault() != nil {
		t.Fatalf("no lua_error means no fault")
	}

	msg.LuaError = "bad price step"
	if _, ok := msg.Fault().(*RemoteError); !ok {
		t.Fatalf("generic fault expected, got %T", msg.Fault())
	}

	msg.Command = CmdTransactionError
	if _, ok := msg.Fault().(*TransactionError); !ok {
		t.Fatalf("transaction fault expected, got %T", msg.Fault())
	}
}
