package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// MaxBeforeID is the sentinel before_id meaning "the newest page", matching
// the host-facing u64::MAX convention in §4.2.
const MaxBeforeID = uint64(math.MaxUint64)

// MessagesBefore returns up to limit non-deleted rows with id < beforeID,
// ordered by id DESC — the newest page when beforeID == MaxBeforeID.
func (d *DB) MessagesBefore(ctx context.Context, channelID, beforeID uint64, limit int) ([]Message, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, server_message_id, channel_id, channel_type, from_uid, timestamp, content,
			message_type, status, pts, order_seq, revoked, revoked_at, revoked_by, extra, is_deleted
		FROM message
		WHERE channel_id = ? AND is_deleted = 0 AND id < ?
		ORDER BY id DESC
		LIMIT ?`, channelID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("messages before: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesAfter returns up to limit non-deleted rows with id > afterID,
// ordered by id ASC.
func (d *DB) MessagesAfter(ctx context.Context, channelID, afterID uint64, limit int) ([]Message, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, server_message_id, channel_id, channel_type, from_uid, timestamp, content,
			message_type, status, pts, order_seq, revoked, revoked_at, revoked_by, extra, is_deleted
		FROM message
		WHERE channel_id = ? AND is_deleted = 0 AND id > ?
		ORDER BY id ASC
		LIMIT ?`, channelID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("messages after: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// EarliestID returns MIN(id) among non-deleted rows in a channel, used as
// the cursor for "load even earlier" requests.
func (d *DB) EarliestID(ctx context.Context, channelID uint64) (uint64, bool, error) {
	var id sql.NullInt64
	err := d.conn.QueryRowContext(ctx,
		`SELECT MIN(id) FROM message WHERE channel_id = ? AND is_deleted = 0`, channelID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("earliest id: %w", err)
	}
	if !id.Valid {
		return 0, false, nil
	}
	return uint64(id.Int64), true, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
