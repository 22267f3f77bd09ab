package model

import "testing"

func TestOrderRecordStatusDecode(t *testing.T) {
	cases := []struct {
		flags uint32
		want  OrderStatus
	}{
		{flagActive, StatusActive},
		{flagActive | flagLimit, StatusActive},
		{flagCanceled, StatusCanceled},
		{flagRejected | flagCanceled, StatusRejected},
		{0, StatusCompleted},
		{flagLimit, StatusCompleted},
	}
	for _, c := range cases {
		r := &OrderRecord{Flags: c.flags}
		if got := r.Status(); got != c.want {
			t.Errorf("flags=%b: expected %s, got %s", c.flags, c.want, got)
		}
	}
}

func TestOrderRecordSideDecode(t *testing.T) {
	buy := &OrderRecord{Flags: flagActive}
	if buy.Side() != SideBuy {
		t.Errorf("expected buy")
	}
	sell := &OrderRecord{Flags: flagActive | flagSell}
	if sell.Side() != SideSell {
		t.Errorf("expected sell")
	}
	if buy.Side().Operation() != OperationBuy || sell.Side().Operation() != OperationSell {
		t.Errorf("operation mapping broken")
	}
}

func TestStopOrderStatusDecode(t *testing.T) {
	cases := []struct {
		flags uint32
		co    int64
		want  StopStatus
	}{
		{flagActive, 0, StopActive},
		{flagCanceled, 0, StopCanceled},
		{flagCanceled, 123, StopExecuted}, // spawned a child: activation, not death
		{0, 123, StopExecuted},
		{0, 0, StopExecuted},
		{flagRejected, 0, StopRejected},
	}
	for _, c := range cases {
		r := &StopOrderRecord{Flags: c.flags, CoOrderNum: c.co}
		if got := r.Status(); got != c.want {
			t.Errorf("flags=%b co=%d: expected %s, got %s", c.flags, c.co, c.want, got)
		}
	}
}

func TestTransReplyAccepted(t *testing.T) {
	if !(&TransReply{Status: 3}).Accepted() {
		t.Errorf("status 3 is accepted")
	}
	for _, s := range []int{0, 1, 2, 4, 5} {
		if (&TransReply{Status: s}).Accepted() {
			t.Errorf("status %d must not be accepted", s)
		}
	}
}
