package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveChannel upserts a channel row, canonicalizing direct channel_type
// values to 1 before write (§9 Direct channel canonicalization).
func (d *DB) SaveChannel(ctx context.Context, c Channel) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save channel: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	canonical := isDirect(c.ChannelType)
	if canonical {
		c.ChannelType = ChannelTypeDirect
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	c.UpdatedAt = time.Now().UnixMilli()
	if err := upsertChannelTx(ctx, tx, c, canonical); err != nil {
		return err
	}
	return tx.Commit()
}

// GetChannels returns every non-deleted channel row, newest first.
func (d *DB) GetChannels(ctx context.Context) ([]Channel, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT channel_id, channel_type, last_msg_timestamp, last_msg_content, unread_count,
			last_msg_pts, top, mute, save, low_priority, follow, name, avatar, remark,
			version, remote_extra, created_at, updated_at
		FROM channel WHERE is_deleted = 0 ORDER BY last_msg_timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("get channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := scanChannelRow(rows, &c); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChannelByChannel returns one channel row by its natural key.
func (d *DB) GetChannelByChannel(ctx context.Context, channelID uint64, channelType int) (Channel, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT channel_id, channel_type, last_msg_timestamp, last_msg_content, unread_count,
			last_msg_pts, top, mute, save, low_priority, follow, name, avatar, remark,
			version, remote_extra, created_at, updated_at
		FROM channel WHERE channel_id = ? AND channel_type = ? AND is_deleted = 0`, channelID, channelType)
	var c Channel
	if err := scanChannelRow(row, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("get channel by channel: %w", err)
	}
	return c, nil
}

// GetDirectChannelByID returns the canonicalized direct channel (type 1) if
// present, falling back to a stray type-0 row for backward compatibility.
func (d *DB) GetDirectChannelByID(ctx context.Context, channelID uint64) (Channel, error) {
	c, err := d.GetChannelByChannel(ctx, channelID, ChannelTypeDirect)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Channel{}, err
	}
	return d.GetChannelByChannel(ctx, channelID, ChannelTypeDirectLegacy)
}

// UpdateChannelPts sets the highest locally-observed pts for a channel,
// used by gap sync (§4.7) once the missing messages are inserted. It is a
// statement of its own, not part of those inserts' transactions (each insert
// already moves last_msg_pts to that message's pts in its own transaction).
func (d *DB) UpdateChannelPts(ctx context.Context, channelID uint64, channelType int, pts uint64) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET last_msg_pts = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		pts, time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel pts: %w", err)
	}
	return nil
}

// FindChannelIdByUser resolves the direct channel id for a 1:1 conversation
// with peerUID, given a deterministic channel-id derivation shared with the
// protocol layer (min/max uid pairing keeps it symmetric regardless of who
// initiates).
func FindChannelIdByUser(selfUID, peerUID uint64) uint64 {
	lo, hi := selfUID, peerUID
	if lo > hi {
		lo, hi = hi, lo
	}
	// A direct channel id is derived, not server-assigned, so both peers
	// compute the same value locally before the first message is ever sent.
	return lo<<32 ^ hi
}

// UpdateChannelSave flips the "save" (favourite) tag.
func (d *DB) UpdateChannelSave(ctx context.Context, channelID uint64, channelType int, saved bool) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET save = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		boolInt(saved), time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel save: %w", err)
	}
	return nil
}

// UpdateChannelMute flips the "mute" (notification) tag.
func (d *DB) UpdateChannelMute(ctx context.Context, channelID uint64, channelType int, muted bool) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET mute = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		boolInt(muted), time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel mute: %w", err)
	}
	return nil
}

// UpdateChannelTop flips the "top" (pinned) tag.
func (d *DB) UpdateChannelTop(ctx context.Context, channelID uint64, channelType int, pinned bool) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET top = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		boolInt(pinned), time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel top: %w", err)
	}
	return nil
}

// UpdateChannelLowPriority flips the "low_priority" tag.
func (d *DB) UpdateChannelLowPriority(ctx context.Context, channelID uint64, channelType int, low bool) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET low_priority = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		boolInt(low), time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel low priority: %w", err)
	}
	return nil
}

// UpdateChannelExtra overwrites the opaque remote_extra JSON echo.
func (d *DB) UpdateChannelExtra(ctx context.Context, channelID uint64, channelType int, extra string) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET remote_extra = ?, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		extra, time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("update channel extra: %w", err)
	}
	return nil
}

// DeleteChannel sets the soft-delete tombstone for a channel.
func (d *DB) DeleteChannel(ctx context.Context, channelID uint64, channelType int) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE channel SET is_deleted = 1, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		time.Now().UnixMilli(), channelID, channelType,
	)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// MarkChannelRead zeroes unread_count and records the read cursor.
func (d *DB) MarkChannelRead(ctx context.Context, channelID uint64, channelType int, lastReadID uint64) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark channel read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`UPDATE channel SET unread_count = 0, updated_at = ? WHERE channel_id = ? AND channel_type = ?`,
		now, channelID, channelType,
	); err != nil {
		return fmt.Errorf("zero unread count: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channel_read_states (channel_id, last_read_id, last_read_at) VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET last_read_id = excluded.last_read_id, last_read_at = excluded.last_read_at`,
		channelID, lastReadID, now,
	); err != nil {
		return fmt.Errorf("record read state: %w", err)
	}
	return tx.Commit()
}

// ChannelReadState returns the local user's own read cursor for a channel.
func (d *DB) ChannelReadState(ctx context.Context, channelID uint64) (ChannelReadState, error) {
	var s ChannelReadState
	s.ChannelID = channelID
	err := d.conn.QueryRowContext(ctx,
		`SELECT last_read_id, last_read_at FROM channel_read_states WHERE channel_id = ?`, channelID,
	).Scan(&s.LastReadID, &s.LastReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return ChannelReadState{}, fmt.Errorf("channel read state: %w", err)
	}
	return s, nil
}
