package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func runManager(t *testing.T, m *Manager) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	return cancel
}

func TestSendObserverFiresOnMatchingEvent(t *testing.T) {
	m := NewManager(10)
	defer runManager(t, m)()

	var mu sync.Mutex
	var got []SendStatusUpdate
	m.RegisterSendObserver(func(u SendStatusUpdate) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, u)
	})

	m.Publish(KindSendStatus, SendStatusUpdate{MessageID: 7, State: SendSent})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0].MessageID != 7 || got[0].State != SendSent {
		t.Errorf("got %+v, want MessageID=7 State=sent", got[0])
	}
}

// TestTimelineObserverLifetime exercises scenario S6: register, receive one
// event, unregister, receive a second event that must not fire, then
// register again and confirm it fires on subsequent events.
func TestTimelineObserverLifetime(t *testing.T) {
	m := NewManager(10)
	defer runManager(t, m)()

	var mu sync.Mutex
	count := 0
	tok := m.RegisterTimelineObserver(2002, func(TimelineDiff) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	m.Publish(KindTimelineDiff, TimelineDiff{ChannelID: 2002, Op: DiffAppend, ItemID: 1})
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 1 })

	m.UnregisterTimelineObserver(tok)
	m.Publish(KindTimelineDiff, TimelineDiff{ChannelID: 2002, Op: DiffAppend, ItemID: 2})
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if count != 1 {
		t.Fatalf("count = %d after unregister, want 1 (observer must not fire)", count)
	}
	mu.Unlock()

	m.RegisterTimelineObserver(2002, func(TimelineDiff) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	m.Publish(KindTimelineDiff, TimelineDiff{ChannelID: 2002, Op: DiffAppend, ItemID: 3})
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 2 })
}

func TestTimelineObserverIgnoresOtherChannels(t *testing.T) {
	m := NewManager(10)
	defer runManager(t, m)()

	fired := make(chan struct{}, 1)
	m.RegisterTimelineObserver(2002, func(TimelineDiff) { fired <- struct{}{} })

	m.Publish(KindTimelineDiff, TimelineDiff{ChannelID: 9999, Op: DiffAppend, ItemID: 1})
	select {
	case <-fired:
		t.Fatal("observer fired for a non-matching channel_id")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPollEventsReceivesPublishedEvents(t *testing.T) {
	m := NewManager(10)
	defer runManager(t, m)()

	m.Publish(KindChannelListUpdate, ChannelListUpdateEvent{Op: ChannelListUpdate, ChannelID: 2002})

	var got []SDKEvent
	waitFor(t, func() bool {
		got = m.PollEvents(0)
		return len(got) == 1
	})
	if got[0].Kind != KindChannelListUpdate {
		t.Errorf("Kind = %v, want %v", got[0].Kind, KindChannelListUpdate)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not satisfied before deadline")
}
