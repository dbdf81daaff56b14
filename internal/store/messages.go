package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("not found")

// SendMessage inserts a new locally-originated message in StatusPending and
// returns its assigned local id. Enforces the enqueue contract's step 2
// (§4.3.1): the row always starts pending, regardless of message_type.
func (d *DB) SendMessage(ctx context.Context, m Message) (uint64, error) {
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	res, err := d.conn.ExecContext(ctx, `
		INSERT INTO message (
			server_message_id, channel_id, channel_type, from_uid, timestamp,
			content, message_type, status, pts, order_seq, extra
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ServerMessageID, m.ChannelID, m.ChannelType, m.FromUID, m.Timestamp,
		m.Content, m.MessageType, StatusPending, m.Pts, m.OrderSeq, m.Extra,
	)
	if err != nil {
		return 0, fmt.Errorf("insert pending message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pending message id: %w", err)
	}
	return uint64(id), nil
}

// SaveReceivedMessage implements the dedup-then-insert-then-upsert-channel
// contract of §4.1. It is idempotent: two calls with the same
// (channel_id, server_message_id) return the same id and never double-write
// the channel's unread_count. The returned bool reports whether this call
// actually inserted a new row (false on a deduped repeat delivery), so
// callers can suppress a second TimelineDiff(Append)/MessageReceived for the
// same message (scenario S2).
func (d *DB) SaveReceivedMessage(ctx context.Context, m Message, isOutgoing bool) (uint64, bool, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin save received message: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id uint64
	var inserted bool
	if m.ServerMessageID != 0 {
		var existing int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM message WHERE channel_id = ? AND server_message_id = ? AND is_deleted = 0`,
			m.ChannelID, m.ServerMessageID,
		).Scan(&existing)
		switch {
		case err == nil:
			id = uint64(existing)
		case errors.Is(err, sql.ErrNoRows):
			id, err = insertMessageTx(ctx, tx, m)
			if err != nil {
				return 0, false, err
			}
			inserted = true
		default:
			return 0, false, fmt.Errorf("dedup lookup: %w", err)
		}
	} else {
		id, err = insertMessageTx(ctx, tx, m)
		if err != nil {
			return 0, false, err
		}
		inserted = true
	}

	if inserted {
		if err := upsertChannelOnReceiveTx(ctx, tx, m, isOutgoing); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit save received message: %w", err)
	}
	return id, inserted, nil
}

func insertMessageTx(ctx context.Context, tx *sql.Tx, m Message) (uint64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO message (
			server_message_id, channel_id, channel_type, from_uid, timestamp,
			content, message_type, status, pts, order_seq, extra
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ServerMessageID, m.ChannelID, m.ChannelType, m.FromUID, m.Timestamp,
		m.Content, m.MessageType, statusOrDefault(m.Status, StatusDelivered), m.Pts, m.OrderSeq, m.Extra,
	)
	if err != nil {
		return 0, fmt.Errorf("insert received message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("received message id: %w", err)
	}
	return uint64(id), nil
}

func statusOrDefault(status, def string) string {
	if status == "" {
		return def
	}
	return status
}

// upsertChannelOnReceiveTx implements §4.1 step 3: direct channels (type 0
// or 1) coalesce to type 1; last_msg_* is updated; unread_count increments
// only when the message is not outgoing; last_msg_pts tracks the newest pts.
func upsertChannelOnReceiveTx(ctx context.Context, tx *sql.Tx, m Message, isOutgoing bool) error {
	canonicalType := m.ChannelType
	if isDirect(m.ChannelType) {
		canonicalType = ChannelTypeDirect
	}

	var existing Channel
	var found bool
	if isDirect(m.ChannelType) {
		found, _ = scanChannelTx(ctx, tx, m.ChannelID, ChannelTypeDirect, &existing)
		if !found {
			found, _ = scanChannelTx(ctx, tx, m.ChannelID, ChannelTypeDirectLegacy, &existing)
		}
	} else {
		found, _ = scanChannelTx(ctx, tx, m.ChannelID, canonicalType, &existing)
	}

	now := time.Now().UnixMilli()
	if found {
		existing.LastMsgTimestamp = m.Timestamp
		existing.LastMsgContent = m.Content
		if !isOutgoing {
			existing.UnreadCount++
		}
		existing.LastMsgPts = m.Pts
		existing.UpdatedAt = now
		existing.ChannelType = canonicalType
		return upsertChannelTx(ctx, tx, existing, isDirect(m.ChannelType))
	}

	unread := uint32(1)
	if isOutgoing {
		unread = 0
	}
	fresh := Channel{
		ChannelID:        m.ChannelID,
		ChannelType:      canonicalType,
		LastMsgTimestamp: m.Timestamp,
		LastMsgContent:   m.Content,
		UnreadCount:      unread,
		LastMsgPts:       m.Pts,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return upsertChannelTx(ctx, tx, fresh, isDirect(m.ChannelType))
}

func scanChannelTx(ctx context.Context, tx *sql.Tx, channelID uint64, channelType int, out *Channel) (bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT channel_id, channel_type, last_msg_timestamp, last_msg_content, unread_count,
			last_msg_pts, top, mute, save, low_priority, follow, name, avatar, remark,
			version, remote_extra, created_at, updated_at
		FROM channel WHERE channel_id = ? AND channel_type = ? AND is_deleted = 0`,
		channelID, channelType,
	)
	if err := scanChannelRow(row, out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannelRow(row rowScanner, c *Channel) error {
	var top, mute, save, low, follow int
	return row.Scan(
		&c.ChannelID, &c.ChannelType, &c.LastMsgTimestamp, &c.LastMsgContent, &c.UnreadCount,
		&c.LastMsgPts, &top, &mute, &save, &low, &follow, &c.Name, &c.Avatar, &c.Remark,
		&c.Version, &c.RemoteExtra, &c.CreatedAt, &c.UpdatedAt,
	), setChannelBools(c, top, mute, save, low, follow)
}

func setChannelBools(c *Channel, top, mute, save, low, follow int) error {
	c.Top, c.Mute, c.Save, c.LowPriority, c.Follow = top != 0, mute != 0, save != 0, low != 0, follow != 0
	return nil
}

func upsertChannelTx(ctx context.Context, tx *sql.Tx, c Channel, canonicalizeDirect bool) error {
	if canonicalizeDirect {
		// Remove any straggler row left under the legacy type-0 marker so a
		// channel never shows up twice in get_channels().
		if _, err := tx.ExecContext(ctx, `DELETE FROM channel WHERE channel_id = ? AND channel_type = ?`,
			c.ChannelID, ChannelTypeDirectLegacy); err != nil {
			return fmt.Errorf("canonicalize direct channel: %w", err)
		}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO channel (
			channel_id, channel_type, last_msg_timestamp, last_msg_content, unread_count,
			last_msg_pts, top, mute, save, low_priority, follow, name, avatar, remark,
			version, remote_extra, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, channel_type) DO UPDATE SET
			last_msg_timestamp = excluded.last_msg_timestamp,
			last_msg_content = excluded.last_msg_content,
			unread_count = excluded.unread_count,
			last_msg_pts = excluded.last_msg_pts,
			updated_at = excluded.updated_at`,
		c.ChannelID, c.ChannelType, c.LastMsgTimestamp, c.LastMsgContent, c.UnreadCount,
		c.LastMsgPts, boolInt(c.Top), boolInt(c.Mute), boolInt(c.Save), boolInt(c.LowPriority), boolInt(c.Follow),
		c.Name, c.Avatar, c.Remark, c.Version, c.RemoteExtra, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetMessageByID returns one message row, or ErrNotFound.
func (d *DB) GetMessageByID(ctx context.Context, id uint64) (Message, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT id, server_message_id, channel_id, channel_type, from_uid, timestamp, content,
			message_type, status, pts, order_seq, revoked, revoked_at, revoked_by, extra, is_deleted
		FROM message WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	var revoked, isDeleted int
	err := row.Scan(
		&m.ID, &m.ServerMessageID, &m.ChannelID, &m.ChannelType, &m.FromUID, &m.Timestamp, &m.Content,
		&m.MessageType, &m.Status, &m.Pts, &m.OrderSeq, &revoked, &m.RevokedAt, &m.RevokedBy, &m.Extra, &isDeleted,
	)
	m.Revoked = revoked != 0
	m.IsDeleted = isDeleted != 0
	return m, err
}

// UpdateMessageStatus sets the status column of one message row.
func (d *DB) UpdateMessageStatus(ctx context.Context, id uint64, status string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE message SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

// UpdateMessageServerID populates server_message_id on ack (§4.1
// UpdateMessageServerId).
func (d *DB) UpdateMessageServerID(ctx context.Context, id, serverMessageID uint64) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE message SET server_message_id = ? WHERE id = ?`, serverMessageID, id)
	if err != nil {
		return fmt.Errorf("update message server id: %w", err)
	}
	return nil
}

// UpdateMessageContent overwrites content, recording the previous value in
// message_edit_history.
func (d *DB) UpdateMessageContent(ctx context.Context, id uint64, newContent string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update content: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var previous string
	if err := tx.QueryRowContext(ctx, `SELECT content FROM message WHERE id = ?`, id).Scan(&previous); err != nil {
		return fmt.Errorf("read previous content: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE message SET content = ? WHERE id = ?`, newContent, id); err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_edit_history (message_id, edited_at, previous_content) VALUES (?, ?, ?)`,
		id, time.Now().UnixMilli(), previous,
	); err != nil {
		return fmt.Errorf("record edit history: %w", err)
	}
	return tx.Commit()
}

// RevokeMessage marks a message revoked, retaining id and timestamp but
// clearing content visibility is left to readers (they check Revoked).
func (d *DB) RevokeMessage(ctx context.Context, id, revokedBy uint64) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE message SET revoked = 1, revoked_at = ?, revoked_by = ?, status = ? WHERE id = ?`,
		time.Now().UnixMilli(), revokedBy, StatusRevoked, id,
	)
	if err != nil {
		return fmt.Errorf("revoke message: %w", err)
	}
	return nil
}

// DeleteMessage sets the soft-delete tombstone.
func (d *DB) DeleteMessage(ctx context.Context, id uint64) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE message SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// AddMessageReaction inserts a reaction row (idempotent on the natural key).
func (d *DB) AddMessageReaction(ctx context.Context, messageID, uid uint64, reaction string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reaction (message_id, uid, reaction, created_at) VALUES (?, ?, ?, ?)`,
		messageID, uid, reaction, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// RemoveMessageReaction deletes one reaction row.
func (d *DB) RemoveMessageReaction(ctx context.Context, messageID, uid uint64, reaction string) error {
	_, err := d.conn.ExecContext(ctx,
		`DELETE FROM message_reaction WHERE message_id = ? AND uid = ? AND reaction = ?`,
		messageID, uid, reaction,
	)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}
