package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveSyncCursor upserts the last-observed server cursor for one entity
// kind, scoped (e.g. per group) or unscoped ("" for global bootstrap steps).
func (d *DB) SaveSyncCursor(ctx context.Context, c SyncCursorRow) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO sync_cursor (entity_kind, scope, cursor, completed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_kind, scope) DO UPDATE SET
			cursor = excluded.cursor, completed = excluded.completed, updated_at = excluded.updated_at`,
		c.EntityKind, c.Scope, c.Cursor, boolInt(c.Completed), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}

// GetSyncCursor returns the cursor row for an entity kind/scope pair, or the
// zero row with Completed == false if none has ever been recorded.
func (d *DB) GetSyncCursor(ctx context.Context, entityKind, scope string) (SyncCursorRow, error) {
	var c SyncCursorRow
	c.EntityKind = entityKind
	c.Scope = scope
	var completed int
	err := d.conn.QueryRowContext(ctx,
		`SELECT cursor, completed, updated_at FROM sync_cursor WHERE entity_kind = ? AND scope = ?`,
		entityKind, scope,
	).Scan(&c.Cursor, &completed, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return SyncCursorRow{}, fmt.Errorf("get sync cursor: %w", err)
	}
	c.Completed = completed != 0
	return c, nil
}

// ListIncompleteCursors returns every cursor row of a given entity kind that
// has not yet been marked completed, used to resume an interrupted bootstrap
// step after restart.
func (d *DB) ListIncompleteCursors(ctx context.Context, entityKind string) ([]SyncCursorRow, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT entity_kind, scope, cursor, completed, updated_at FROM sync_cursor
		WHERE entity_kind = ? AND completed = 0`, entityKind,
	)
	if err != nil {
		return nil, fmt.Errorf("list incomplete cursors: %w", err)
	}
	defer rows.Close()

	var out []SyncCursorRow
	for rows.Next() {
		var c SyncCursorRow
		var completed int
		if err := rows.Scan(&c.EntityKind, &c.Scope, &c.Cursor, &completed, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sync cursor: %w", err)
		}
		c.Completed = completed != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResetSyncCursors clears every cursor row of a given entity kind, used when
// a full re-bootstrap is forced (e.g. after a pts discontinuity too large to
// gap-sync).
func (d *DB) ResetSyncCursors(ctx context.Context, entityKind string) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM sync_cursor WHERE entity_kind = ?`, entityKind)
	if err != nil {
		return fmt.Errorf("reset sync cursors: %w", err)
	}
	return nil
}
