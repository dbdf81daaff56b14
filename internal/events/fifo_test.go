package events

import "testing"

func TestPollQueueDrainsInFIFOOrder(t *testing.T) {
	q := newPollQueue(4)
	for i := uint64(1); i <= 3; i++ {
		q.push(Event{Kind: KindSendStatus, Data: SendStatusUpdate{MessageID: i}})
	}

	got := q.drain(0)
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	for i, e := range got {
		want := uint64(i + 1)
		if e.Data.(SendStatusUpdate).MessageID != want {
			t.Errorf("got[%d].MessageID = %d, want %d", i, e.Data.(SendStatusUpdate).MessageID, want)
		}
	}
}

func TestPollQueueEvictsOldestBeyondCapacity(t *testing.T) {
	q := newPollQueue(2)
	for i := uint64(1); i <= 4; i++ {
		q.push(Event{Kind: KindSendStatus, Data: SendStatusUpdate{MessageID: i}})
	}

	got := q.drain(0)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (capacity should evict the oldest)", len(got))
	}
	if got[0].Data.(SendStatusUpdate).MessageID != 3 || got[1].Data.(SendStatusUpdate).MessageID != 4 {
		t.Errorf("got = %+v, want events 3 and 4 to survive eviction", got)
	}
}

func TestPollQueuePartialDrainLeavesRemainderInOrder(t *testing.T) {
	q := newPollQueue(10)
	for i := uint64(1); i <= 5; i++ {
		q.push(Event{Kind: KindSendStatus, Data: SendStatusUpdate{MessageID: i}})
	}

	first := q.drain(2)
	if len(first) != 2 || first[0].Data.(SendStatusUpdate).MessageID != 1 || first[1].Data.(SendStatusUpdate).MessageID != 2 {
		t.Fatalf("first drain = %+v, want events 1,2", first)
	}

	rest := q.drain(0)
	if len(rest) != 3 {
		t.Fatalf("len(rest) = %d, want 3", len(rest))
	}
	for i, e := range rest {
		want := uint64(i + 3)
		if e.Data.(SendStatusUpdate).MessageID != want {
			t.Errorf("rest[%d].MessageID = %d, want %d", i, e.Data.(SendStatusUpdate).MessageID, want)
		}
	}
}

func TestPollQueueDrainOnEmptyReturnsNil(t *testing.T) {
	q := newPollQueue(4)
	if got := q.drain(0); got != nil {
		t.Errorf("drain on empty queue = %+v, want nil", got)
	}
}
