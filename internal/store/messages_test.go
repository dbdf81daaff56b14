package store

import (
	"context"
	"testing"
)

func TestSaveReceivedMessageIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := Message{
		ServerMessageID: 555,
		ChannelID:       100,
		ChannelType:     ChannelTypeDirect,
		FromUID:         2,
		Content:         "hi",
		MessageType:     "text",
	}

	firstID, firstInserted, err := db.SaveReceivedMessage(ctx, m, false)
	if err != nil {
		t.Fatalf("first SaveReceivedMessage: %v", err)
	}
	if !firstInserted {
		t.Fatalf("expected first delivery to be a fresh insert")
	}
	secondID, secondInserted, err := db.SaveReceivedMessage(ctx, m, false)
	if err != nil {
		t.Fatalf("second SaveReceivedMessage: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("expected same id on replay, got %d then %d", firstID, secondID)
	}
	if secondInserted {
		t.Fatalf("expected second (deduped) delivery to report inserted=false")
	}

	ch, err := db.GetChannelByChannel(ctx, m.ChannelID, ChannelTypeDirect)
	if err != nil {
		t.Fatalf("GetChannelByChannel: %v", err)
	}
	if ch.UnreadCount != 1 {
		t.Errorf("unread_count = %d, want 1 (dedup must not double-increment)", ch.UnreadCount)
	}
}

func TestSaveReceivedMessageOutgoingDoesNotIncrementUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := Message{
		ServerMessageID: 1,
		ChannelID:       200,
		ChannelType:     ChannelTypeDirect,
		FromUID:         9,
		Content:         "echo",
		MessageType:     "text",
	}
	if _, _, err := db.SaveReceivedMessage(ctx, m, true); err != nil {
		t.Fatalf("SaveReceivedMessage: %v", err)
	}

	ch, err := db.GetChannelByChannel(ctx, m.ChannelID, ChannelTypeDirect)
	if err != nil {
		t.Fatalf("GetChannelByChannel: %v", err)
	}
	if ch.UnreadCount != 0 {
		t.Errorf("unread_count = %d, want 0 for outgoing echo", ch.UnreadCount)
	}
}

func TestDirectChannelTypeCanonicalizesOnReceive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	legacy := Message{
		ServerMessageID: 1,
		ChannelID:       300,
		ChannelType:     ChannelTypeDirectLegacy,
		FromUID:         1,
		Content:         "a",
	}
	if _, _, err := db.SaveReceivedMessage(ctx, legacy, false); err != nil {
		t.Fatalf("SaveReceivedMessage legacy: %v", err)
	}

	modern := Message{
		ServerMessageID: 2,
		ChannelID:       300,
		ChannelType:     ChannelTypeDirect,
		FromUID:         1,
		Content:         "b",
	}
	if _, _, err := db.SaveReceivedMessage(ctx, modern, false); err != nil {
		t.Fatalf("SaveReceivedMessage modern: %v", err)
	}

	chans, err := db.GetChannels(ctx)
	if err != nil {
		t.Fatalf("GetChannels: %v", err)
	}
	var matches int
	for _, c := range chans {
		if c.ChannelID == 300 {
			matches++
			if c.ChannelType != ChannelTypeDirect {
				t.Errorf("channel_type = %d, want %d", c.ChannelType, ChannelTypeDirect)
			}
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one coalesced channel row, found %d", matches)
	}
}

func TestUpdateMessageContentRecordsEditHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.SendMessage(ctx, Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "original"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := db.UpdateMessageContent(ctx, id, "edited"); err != nil {
		t.Fatalf("UpdateMessageContent: %v", err)
	}

	got, err := db.GetMessageByID(ctx, id)
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if got.Content != "edited" {
		t.Errorf("content = %q, want edited", got.Content)
	}

	var previous string
	if err := db.conn.QueryRowContext(ctx,
		`SELECT previous_content FROM message_edit_history WHERE message_id = ?`, id,
	).Scan(&previous); err != nil {
		t.Fatalf("query edit history: %v", err)
	}
	if previous != "original" {
		t.Errorf("previous_content = %q, want original", previous)
	}
}

func TestRevokeMessageSetsStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.SendMessage(ctx, Message{ChannelID: 1, ChannelType: ChannelTypeDirect, Content: "x"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := db.RevokeMessage(ctx, id, 9); err != nil {
		t.Fatalf("RevokeMessage: %v", err)
	}

	got, err := db.GetMessageByID(ctx, id)
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if !got.Revoked || got.Status != StatusRevoked || got.RevokedBy != 9 {
		t.Errorf("unexpected revoke state: %+v", got)
	}
}

func TestGetMessageByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetMessageByID(context.Background(), 99999); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
