package store

import (
	"context"
	"testing"
)

func TestSaveChannelCanonicalizesDirectType(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveChannel(ctx, Channel{ChannelID: 10, ChannelType: ChannelTypeDirectLegacy, Name: "peer"}); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}

	got, err := db.GetChannelByChannel(ctx, 10, ChannelTypeDirect)
	if err != nil {
		t.Fatalf("GetChannelByChannel(canonical): %v", err)
	}
	if got.ChannelType != ChannelTypeDirect {
		t.Errorf("channel_type = %d, want %d", got.ChannelType, ChannelTypeDirect)
	}

	if _, err := db.GetChannelByChannel(ctx, 10, ChannelTypeDirectLegacy); err != ErrNotFound {
		t.Errorf("legacy row should not exist, got err = %v", err)
	}
}

func TestGetDirectChannelByIDFallsBackToLegacy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Insert a stray legacy row directly, bypassing SaveChannel's
	// canonicalization, to simulate a row written before coalescing shipped.
	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO channel (channel_id, channel_type, created_at, updated_at) VALUES (?, ?, 0, 0)`,
		20, ChannelTypeDirectLegacy,
	); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	got, err := db.GetDirectChannelByID(ctx, 20)
	if err != nil {
		t.Fatalf("GetDirectChannelByID: %v", err)
	}
	if got.ChannelID != 20 {
		t.Errorf("channel_id = %d, want 20", got.ChannelID)
	}
}

func TestMarkChannelReadZeroesUnreadAndRecordsState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, _, err := db.SaveReceivedMessage(ctx, Message{
		ServerMessageID: 1, ChannelID: 30, ChannelType: ChannelTypeDirect, Content: "x",
	}, false); err != nil {
		t.Fatalf("SaveReceivedMessage: %v", err)
	}

	if err := db.MarkChannelRead(ctx, 30, ChannelTypeDirect, 1); err != nil {
		t.Fatalf("MarkChannelRead: %v", err)
	}

	ch, err := db.GetChannelByChannel(ctx, 30, ChannelTypeDirect)
	if err != nil {
		t.Fatalf("GetChannelByChannel: %v", err)
	}
	if ch.UnreadCount != 0 {
		t.Errorf("unread_count = %d, want 0", ch.UnreadCount)
	}

	state, err := db.ChannelReadState(ctx, 30)
	if err != nil {
		t.Fatalf("ChannelReadState: %v", err)
	}
	if state.LastReadID != 1 {
		t.Errorf("LastReadID = %d, want 1", state.LastReadID)
	}
}

func TestFindChannelIdByUserIsSymmetric(t *testing.T) {
	a := FindChannelIdByUser(5, 9)
	b := FindChannelIdByUser(9, 5)
	if a != b {
		t.Errorf("FindChannelIdByUser not symmetric: %d vs %d", a, b)
	}
}

func TestChannelTogglesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveChannel(ctx, Channel{ChannelID: 40, ChannelType: ChannelTypeGroup}); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}
	if err := db.UpdateChannelTop(ctx, 40, ChannelTypeGroup, true); err != nil {
		t.Fatalf("UpdateChannelTop: %v", err)
	}
	if err := db.UpdateChannelMute(ctx, 40, ChannelTypeGroup, true); err != nil {
		t.Fatalf("UpdateChannelMute: %v", err)
	}

	got, err := db.GetChannelByChannel(ctx, 40, ChannelTypeGroup)
	if err != nil {
		t.Fatalf("GetChannelByChannel: %v", err)
	}
	if !got.Top || !got.Mute {
		t.Errorf("expected top and mute both set, got %+v", got)
	}
}

func TestDeleteChannelSoftDeletes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveChannel(ctx, Channel{ChannelID: 50, ChannelType: ChannelTypeGroup}); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}
	if err := db.DeleteChannel(ctx, 50, ChannelTypeGroup); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if _, err := db.GetChannelByChannel(ctx, 50, ChannelTypeGroup); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
