package store

import (
	"context"
	"sync"
	"testing"
)

func newTestActor(t *testing.T) *Actor {
	t.Helper()
	db, err := Open(1, ":memory:", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := NewActor(db)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestActorSerializesConcurrentSends(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := a.SendMessageWithTask(ctx, Message{
				ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "m",
			}, uniqueClientMsgNo(i), "{}")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("SendMessageWithTask: %v", err)
		}
	}

	got, err := a.MessagesBefore(ctx, 1, MaxBeforeID, n+1)
	if err != nil {
		t.Fatalf("MessagesBefore: %v", err)
	}
	if len(got) != n {
		t.Fatalf("len(got) = %d, want %d (single-writer actor must not drop concurrent writes)", len(got), n)
	}
}

func uniqueClientMsgNo(i int) string {
	const hex = "0123456789abcdef"
	b := []byte("no-00000000")
	for pos := len(b) - 1; i > 0; pos-- {
		b[pos] = hex[i%16]
		i /= 16
	}
	return string(b)
}

func TestActorCloseStopsAcceptingWork(t *testing.T) {
	db, err := Open(1, ":memory:", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := NewActor(db)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = a.GetChannels(context.Background())
	if err == nil {
		t.Fatal("expected an error submitting work to a closed actor")
	}
}
