package events

import "testing"

func TestBusPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(Event{Kind: KindSendStatus, Data: SendStatusUpdate{MessageID: 1}})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Kind != KindSendStatus {
				t.Errorf("Kind = %v, want %v", e.Kind, KindSendStatus)
			}
		default:
			t.Error("expected a buffered event on every subscriber")
		}
	}
}

func TestBusDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(1)

	b.Publish(Event{Kind: KindSendStatus})
	b.Publish(Event{Kind: KindTimelineDiff}) // buffer of 1 is already full: evicts the first

	got := <-ch
	if got.Kind != KindTimelineDiff {
		t.Errorf("Kind = %v, want the newest published event to survive", got.Kind)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %+v; overflow should drop the oldest", e)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(1)
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", b.SubscriberCount())
	}
	b.Unsubscribe(ch)
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0 after Unsubscribe", b.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestBusPublishOnNilIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindSendStatus}) // must not panic
	if b.SubscriberCount() != 0 {
		t.Error("SubscriberCount on a nil bus should be 0")
	}
}
