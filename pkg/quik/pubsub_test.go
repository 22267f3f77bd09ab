package quik

import "testing"

func TestPubsubDeliversToAllSubscribers(t *testing.T) {
	ps := NewPubsub()
	var a, b int
	ps.Subscribe(EventOrder, func(msg *Message) { a++ })
	ps.Subscribe(EventOrder, func(msg *Message) { b++ })
	ps.Subscribe(EventTrade, func(msg *Message) { t.Errorf("wrong kind delivered") })

	ps.Publish(EventOrder, &Message{Command: CallbackOrder})
	if a != 1 || b != 1 {
		t.Fatalf("expected one delivery each, got a=%d b=%d", a, b)
	}
}

func TestPubsubUnsubscribe(t *testing.T) {
	ps := NewPubsub()
	var n int
	unsub := ps.Subscribe(EventTrade, func(msg *Message) { n++ })
	ps.Publish(EventTrade, &Message{})
	unsub()
	ps.Publish(EventTrade, &Message{})
	if n != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", n)
	}
}

func TestPubsubPanicIsolation(t *testing.T) {
	ps := NewPubsub()
	var after int
	ps.Subscribe(EventOrder, func(msg *Message) { panic("boom") })
	ps.Subscribe(EventOrder, func(msg *Message) { after++ })

	ps.Publish(EventOrder, &Message{})
	if after != 1 {
		t.Fatalf("panic must not stop delivery to remaining subscribers")
	}
}

func TestPubsubSubscribeDuringDispatch(t *testing.T) {
	ps := NewPubsub()
	var first, late int
	ps.Subscribe(EventOrder, func(msg *Message) {
		first++
		if first == 1 {
			ps.Subscribe(EventOrder, func(msg *Message) { late++ })
		}
	})

	ps.Publish(EventOrder, &Message{})
	if late != 0 {
		t.Fatalf("subscriber added during dispatch must not receive the in-flight event")
	}
	ps.Publish(EventOrder, &Message{})
	if first != 2 || late != 1 {
		t.Fatalf("expected first=2 late=1, got first=%d late=%d", first, late)
	}
}

func TestPubsubUnsubscribeDuringDispatch(t *testing.T) {
	ps := NewPubsub()
	var other int
	var unsub func()
	unsub = ps.Subscribe(EventOrder, func(msg *Message) { unsub() })
	ps.Subscribe(EventOrder, func(msg *Message) { other++ })

	ps.Publish(EventOrder, &Message{})
	if other != 1 {
		t.Fatalf("unsubscribe during dispatch lost a delivery to a remaining subscriber")
	}
}
