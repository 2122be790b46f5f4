package event

import (
	"testing"

	"paper_trade/internal/domain"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(Notification{Seq: 1, Kind: KindEngineEnabled})

	for name, ch := range map[string]<-chan Notification{"a": a, "b": b} {
		select {
		case n := <-ch:
			if n.Seq != 1 || n.Kind != KindEngineEnabled {
				t.Errorf("%s: unexpected notification %+v", name, n)
			}
		default:
			t.Errorf("%s: nothing delivered", name)
		}
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(Notification{Seq: 1})
	bus.Publish(Notification{Seq: 2}) // buffer full

	if got := bus.Dropped(); got != 1 {
		t.Errorf("expected 1 drop, got %d", got)
	}
	if n := <-ch; n.Seq != 1 {
		t.Errorf("expected seq 1, got %d", n.Seq)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	bus.Publish(Notification{Seq: 1}) // must not panic on closed channel
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	bus.Close()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}

	late, _ := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus returns a closed channel")
	}
}

func TestNotification_CopiesOrder(t *testing.T) {
	o := domain.Order{ID: "o-1", Status: domain.StatusPending}
	n := OrderNotification(KindOrderPlaced, o)
	n.Order.Status = domain.StatusFilled

	if o.Status != domain.StatusPending {
		t.Error("notification must hold a copy of the order")
	}
}

func TestBus_SubscribersGetOwnCopies(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe(2)
	b, unsubB := bus.Subscribe(2)
	defer unsubA()
	defer unsubB()

	bus.Publish(OrderNotification(KindOrderPlaced, domain.Order{ID: "o-1", Status: domain.StatusPending}))
	bus.Publish(PositionNotification(domain.Position{Symbol: "BTC/USD", QtySats: 1}))

	na, nb := <-a, <-b
	na.Order.Status = domain.StatusCanceled
	if nb.Order.Status != domain.StatusPending {
		t.Errorf("mutation leaked to another subscriber: %s", nb.Order.Status)
	}

	pa, pb := <-a, <-b
	pa.Position.QtySats = 99
	if pb.Position.QtySats != 1 {
		t.Errorf("mutation leaked to another subscriber: %d", pb.Position.QtySats)
	}
}
