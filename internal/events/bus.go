// Package events implements the Event Manager (C9): a non-blocking
// broadcast bus, a typed per-subject observer registry keyed by monotonic
// tokens, and a bounded poll-based FIFO for hosts that prefer polling over
// callbacks.
package events

import "sync"

// Event is one item published on the bus. Kind discriminates the payload
// carried in Data; callers type-assert Data to the concrete struct named by
// Kind's doc comment.
type Event struct {
	Kind Kind
	Data any
}

// Kind names one event variant (§4.9's SendStatusUpdate, TimelineDiff,
// ChannelListUpdate, TypingUpdate, ReceiptUpdate, ConnectionStateChanged,
// SyncStatus).
type Kind string

const (
	KindSendStatus       Kind = "send_status"        // Data: SendStatusUpdate
	KindTimelineDiff     Kind = "timeline_diff"       // Data: TimelineDiff
	KindChannelListUpdate Kind = "channel_list_update" // Data: ChannelListUpdate
	KindTypingUpdate     Kind = "typing_update"        // Data: TypingUpdate
	KindReceiptUpdate    Kind = "receipt_update"       // Data: ReceiptUpdate
	KindConnectionState  Kind = "connection_state"     // Data: ConnectionStateChanged
	KindSyncStatus       Kind = "sync_status"          // Data: SyncStatus
)

// Bus is a non-blocking broadcast event bus. Subscribers receive events on
// buffered channels; a slow subscriber misses events rather than blocking
// publishers — grounded on the observation that an event-sourced UI only
// ever needs the freshest state, not a perfect log.
type Bus struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event
}

// NewBus creates a ready-to-use event bus.
func NewBus() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to every subscriber. Safe to call on a nil
// receiver (no-op), so components never need a guard check before
// publishing.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Buffer full: evict the oldest queued event, then push.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving every published event. The caller
// must eventually call Unsubscribe.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. A no-op if
// already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount reports the number of active subscribers, for tests and
// diagnostics.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
