package store

import (
	"context"
	"testing"
)

func seedMessages(t *testing.T, db *DB, channelID uint64, n int) []uint64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id, err := db.SendMessage(ctx, Message{ChannelID: channelID, ChannelType: ChannelTypeDirect, Content: "m"})
		if err != nil {
			t.Fatalf("seed SendMessage %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMessagesBeforePaginationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ids := seedMessages(t, db, 1, 5)

	page1, err := db.MessagesBefore(ctx, 1, MaxBeforeID, 2)
	if err != nil {
		t.Fatalf("MessagesBefore page1: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Fatalf("page1 = %+v, want newest two descending", page1)
	}

	page2, err := db.MessagesBefore(ctx, 1, page1[len(page1)-1].ID, 2)
	if err != nil {
		t.Fatalf("MessagesBefore page2: %v", err)
	}
	if len(page2) != 2 || page2[0].ID != ids[2] || page2[1].ID != ids[1] {
		t.Fatalf("page2 = %+v, want next two descending", page2)
	}

	page3, err := db.MessagesBefore(ctx, 1, page2[len(page2)-1].ID, 2)
	if err != nil {
		t.Fatalf("MessagesBefore page3: %v", err)
	}
	if len(page3) != 1 || page3[0].ID != ids[0] {
		t.Fatalf("page3 = %+v, want the oldest single row", page3)
	}
}

func TestMessagesAfterIsAscending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ids := seedMessages(t, db, 1, 3)

	got, err := db.MessagesAfter(ctx, 1, 0, 10)
	if err != nil {
		t.Fatalf("MessagesAfter: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	for i, id := range ids {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestEarliestID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.EarliestID(ctx, 1); err != nil || ok {
		t.Fatalf("EarliestID on empty channel = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	ids := seedMessages(t, db, 1, 3)
	earliest, ok, err := db.EarliestID(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("EarliestID: %v, %v", ok, err)
	}
	if earliest != ids[0] {
		t.Errorf("earliest = %d, want %d", earliest, ids[0])
	}
}

func TestMessagesBeforeExcludesSoftDeleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ids := seedMessages(t, db, 1, 2)

	if err := db.DeleteMessage(ctx, ids[1]); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	got, err := db.MessagesBefore(ctx, 1, MaxBeforeID, 10)
	if err != nil {
		t.Fatalf("MessagesBefore: %v", err)
	}
	if len(got) != 1 || got[0].ID != ids[0] {
		t.Fatalf("got = %+v, want only the non-deleted row", got)
	}
}
