package events

import (
	"container/ring"
	"sync"
)

// SDKEvent is the envelope PollEvents returns: a Kind tag plus the
// type-asserted payload, matching what arrives on the raw bus.
type SDKEvent = Event

// pollQueue is a fixed-capacity FIFO for hosts that prefer polling over
// registering observer callbacks. Backed by container/ring per §4.6;
// pushing past capacity evicts the oldest entry.
type pollQueue struct {
	mu       sync.Mutex
	buf      *ring.Ring
	count    int
	capacity int
}

func newPollQueue(capacity int) *pollQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &pollQueue{buf: ring.New(capacity), capacity: capacity}
}

func (q *pollQueue) push(e SDKEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf.Value = e
	q.buf = q.buf.Next()
	if q.count < q.capacity {
		q.count++
	}
}

// drain removes and returns up to max events in FIFO arrival order (max <=
// 0 means "all buffered events").
func (q *pollQueue) drain(max int) []SDKEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	n := q.count
	if max > 0 && max < n {
		n = max
	}

	// q.buf currently points at the next write slot, i.e. one past the
	// last write. The oldest live entry is count slots behind that write
	// cursor (when the ring is full, that is the write slot itself).
	start := q.buf.Move(-q.count)
	out := make([]SDKEvent, 0, n)
	r := start
	for i := 0; i < n; i++ {
		out = append(out, r.Value.(SDKEvent))
		r = r.Next()
	}
	q.count -= n
	return out
}
