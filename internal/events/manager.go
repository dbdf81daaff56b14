package events

import (
	"context"
	"log/slog"
)

// Manager is the Event Manager (C9): a raw broadcast bus, a typed
// per-subject observer registry, and a bounded poll-based FIFO, all fed by
// one publish path so a caller never needs to reason about more than one
// "emit" call.
type Manager struct {
	bus *Bus
	raw <-chan Event

	sendObs        *registry[SendObserver]
	timelineObs    *registry[timelineEntry]
	channelListObs *registry[ChannelListObserver]
	typingObs      *registry[TypingObserver]
	receiptObs     *registry[ReceiptObserver]

	poll *pollQueue
}

// NewManager builds a Manager and starts its dispatch loop. pollCapacity <=
// 0 defaults to 1000 per §4.6. Run blocks until ctx is cancelled, so call
// it in its own goroutine.
func NewManager(pollCapacity int) *Manager {
	bus := NewBus()
	m := &Manager{
		bus:            bus,
		raw:            bus.Subscribe(256),
		sendObs:        newRegistry[SendObserver](),
		timelineObs:    newRegistry[timelineEntry](),
		channelListObs: newRegistry[ChannelListObserver](),
		typingObs:      newRegistry[TypingObserver](),
		receiptObs:     newRegistry[ReceiptObserver](),
		poll:           newPollQueue(pollCapacity),
	}
	return m
}

// Run drains the raw bus, fanning each event out to the poll FIFO and to
// every matching typed observer. Observer callbacks run synchronously on
// this goroutine, per §4.8's "observers are invoked from runtime-owned
// tasks" contract — host-supplied observers must not block for long.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-m.raw:
			if !ok {
				return
			}
			m.dispatch(e)
		}
	}
}

func (m *Manager) dispatch(e Event) {
	m.poll.push(e)

	switch e.Kind {
	case KindSendStatus:
		upd, ok := e.Data.(SendStatusUpdate)
		if !ok {
			return
		}
		for _, obs := range m.sendObs.snapshot() {
			safeCall(func() { obs(upd) })
		}
	case KindTimelineDiff:
		diff, ok := e.Data.(TimelineDiff)
		if !ok {
			return
		}
		for _, entry := range m.timelineObs.snapshot() {
			if entry.channelID != diff.ChannelID {
				continue
			}
			obs := entry.observer
			safeCall(func() { obs(diff) })
		}
	case KindChannelListUpdate:
		upd, ok := e.Data.(ChannelListUpdateEvent)
		if !ok {
			return
		}
		for _, obs := range m.channelListObs.snapshot() {
			safeCall(func() { obs(upd) })
		}
	case KindTypingUpdate:
		ind, ok := e.Data.(TypingIndicator)
		if !ok {
			return
		}
		for _, obs := range m.typingObs.snapshot() {
			safeCall(func() { obs(ind) })
		}
	case KindReceiptUpdate:
		r, ok := e.Data.(ReadReceiptReceived)
		if !ok {
			return
		}
		for _, obs := range m.receiptObs.snapshot() {
			safeCall(func() { obs(r) })
		}
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event observer panicked", "recovered", r)
		}
	}()
	fn()
}

// Publish emits an event onto the raw bus; Run's dispatch loop then fans it
// out to the poll FIFO and any matching typed observers.
func (m *Manager) Publish(kind Kind, data any) {
	m.bus.Publish(Event{Kind: kind, Data: data})
}

// PollEvents returns up to max buffered events in FIFO order, removing them
// from the queue (max <= 0 drains everything currently buffered).
func (m *Manager) PollEvents(max int) []SDKEvent {
	return m.poll.drain(max)
}

// RegisterSendObserver subscribes to every SendStatusUpdate.
func (m *Manager) RegisterSendObserver(obs SendObserver) uint64 {
	return m.sendObs.register(obs)
}

// UnregisterSendObserver removes a send observer by its token.
func (m *Manager) UnregisterSendObserver(tok uint64) { m.sendObs.unregister(tok) }

// RegisterTimelineObserver subscribes to TimelineDiff events for one
// channel_id.
func (m *Manager) RegisterTimelineObserver(channelID uint64, obs func(TimelineDiff)) uint64 {
	return m.timelineObs.register(timelineEntry{channelID: channelID, observer: obs})
}

// UnregisterTimelineObserver removes a timeline observer by its token.
func (m *Manager) UnregisterTimelineObserver(tok uint64) { m.timelineObs.unregister(tok) }

// RegisterChannelListObserver subscribes to every ChannelListUpdateEvent.
func (m *Manager) RegisterChannelListObserver(obs ChannelListObserver) uint64 {
	return m.channelListObs.register(obs)
}

// UnregisterChannelListObserver removes a channel-list observer by its token.
func (m *Manager) UnregisterChannelListObserver(tok uint64) { m.channelListObs.unregister(tok) }

// RegisterTypingObserver subscribes to every TypingIndicator.
func (m *Manager) RegisterTypingObserver(obs TypingObserver) uint64 {
	return m.typingObs.register(obs)
}

// UnregisterTypingObserver removes a typing observer by its token.
func (m *Manager) UnregisterTypingObserver(tok uint64) { m.typingObs.unregister(tok) }

// RegisterReceiptObserver subscribes to every ReadReceiptReceived.
func (m *Manager) RegisterReceiptObserver(obs ReceiptObserver) uint64 {
	return m.receiptObs.register(obs)
}

// UnregisterReceiptObserver removes a receipt observer by its token.
func (m *Manager) UnregisterReceiptObserver(tok uint64) { m.receiptObs.unregister(tok) }
