package queue

import (
	"context"
	"testing"

	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

func TestDrainCancelsPendingTasks(t *testing.T) {
	actor := newTestActor(t)
	sender := newRecordingSender()
	sender.failUntil[1] = 1000 // never succeeds within the test

	q := New(actor, sender, noopNotifier{}, nil, DefaultConfig())
	id, err := q.Enqueue(context.Background(), 1, store.ChannelTypeDirect, 1, "hi", "text", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	n, err := q.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 1 {
		t.Fatalf("drained = %d, want 1", n)
	}

	msg, err := actor.GetMessageByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if msg.Status != store.StatusFailed {
		t.Errorf("status = %q, want %q after drain", msg.Status, store.StatusFailed)
	}
}

func TestRetryMessageReArmsFailedMessage(t *testing.T) {
	actor := newTestActor(t)
	sender := newRecordingSender()
	q := New(actor, sender, noopNotifier{}, nil, DefaultConfig())

	id, err := q.Enqueue(context.Background(), 1, store.ChannelTypeDirect, 1, "hi", "text", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := actor.UpdateMessageStatus(context.Background(), id, store.StatusFailed); err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}

	if err := q.RetryMessage(context.Background(), id); err != nil {
		t.Fatalf("RetryMessage: %v", err)
	}

	msg, err := actor.GetMessageByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if msg.Status != store.StatusPending {
		t.Errorf("status = %q, want %q after retry", msg.Status, store.StatusPending)
	}

	ready, err := actor.DequeueReadyTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("DequeueReadyTasks: %v", err)
	}
	if len(ready) != 1 || ready[0].MessageID != id {
		t.Fatalf("ready = %+v, want a single fresh task for message %d", ready, id)
	}
}
