package store

import (
	"context"
	"testing"
)

func TestSendMessageWithTaskInsertsBothRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "hi"}
	msg, taskID, err := db.SendMessageWithTask(ctx, m, "client-msg-no-1", `{"content":"hi"}`)
	if err != nil {
		t.Fatalf("SendMessageWithTask: %v", err)
	}
	if msg.ID == 0 || msg.Status != StatusPending {
		t.Fatalf("unexpected message: %+v", msg)
	}

	task, err := db.GetSendTask(ctx, taskID)
	if err != nil {
		t.Fatalf("GetSendTask: %v", err)
	}
	if task.MessageID != msg.ID || task.ChannelID != m.ChannelID || task.Terminal {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestDequeueReadyTasksRespectsNextRetryAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "hi"}
	_, taskID, err := db.SendMessageWithTask(ctx, m, "client-msg-no-2", "{}")
	if err != nil {
		t.Fatalf("SendMessageWithTask: %v", err)
	}

	ready, err := db.DequeueReadyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("DequeueReadyTasks: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != taskID {
		t.Fatalf("ready = %+v, want [task %d]", ready, taskID)
	}

	farFuture := int64(1) << 62
	if err := db.MarkTaskRetry(ctx, taskID, farFuture, "network_timeout"); err != nil {
		t.Fatalf("MarkTaskRetry: %v", err)
	}
	ready, err = db.DequeueReadyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("DequeueReadyTasks after retry: %v", err)
	}
	if len(ready) != 0 {
		t.Errorf("ready = %+v, want empty while next_retry_at is in the future", ready)
	}
}

func TestMarkTaskTerminalRemovesFromQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "hi"}
	_, taskID, err := db.SendMessageWithTask(ctx, m, "client-msg-no-3", "{}")
	if err != nil {
		t.Fatalf("SendMessageWithTask: %v", err)
	}
	if err := db.MarkTaskTerminal(ctx, taskID); err != nil {
		t.Fatalf("MarkTaskTerminal: %v", err)
	}
	if _, err := db.GetSendTask(ctx, taskID); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelPendingTasksMarksMessagesFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m1 := Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "a"}
	m2 := Message{ChannelID: 2, ChannelType: ChannelTypeDirect, Content: "b"}
	msg1, _, err := db.SendMessageWithTask(ctx, m1, "no-4", "{}")
	if err != nil {
		t.Fatalf("SendMessageWithTask 1: %v", err)
	}
	msg2, _, err := db.SendMessageWithTask(ctx, m2, "no-5", "{}")
	if err != nil {
		t.Fatalf("SendMessageWithTask 2: %v", err)
	}

	n, err := db.CancelPendingTasks(ctx)
	if err != nil {
		t.Fatalf("CancelPendingTasks: %v", err)
	}
	if n != 2 {
		t.Fatalf("cancelled = %d, want 2", n)
	}

	for _, id := range []uint64{msg1.ID, msg2.ID} {
		got, err := db.GetMessageByID(ctx, id)
		if err != nil {
			t.Fatalf("GetMessageByID(%d): %v", id, err)
		}
		if got.Status != StatusFailed {
			t.Errorf("message %d status = %q, want %q", id, got.Status, StatusFailed)
		}
	}

	ready, err := db.DequeueReadyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("DequeueReadyTasks: %v", err)
	}
	if len(ready) != 0 {
		t.Errorf("ready = %+v, want empty after cancel", ready)
	}
}
