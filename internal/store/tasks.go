package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertSendTask persists a durable outbound task referencing an
// already-inserted pending message row (§4.3.1 step 3). Enqueue succeeds or
// fails as a unit: callers must run SendMessage and InsertSendTask inside
// the same transaction via SendMessageWithTask.
func (d *DB) InsertSendTask(ctx context.Context, t SendTaskRow) (uint64, error) {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	res, err := d.conn.ExecContext(ctx, `
		INSERT INTO send_task (
			message_id, client_msg_no, channel_id, channel_type, payload,
			attempt_count, next_retry_at, last_error_class, terminal, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.MessageID, t.ClientMsgNo, t.ChannelID, t.ChannelType, t.Payload,
		t.AttemptCount, t.NextRetryAt, t.LastErrorClass, boolInt(t.Terminal), t.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert send task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("send task id: %w", err)
	}
	return uint64(id), nil
}

// SendMessageWithTask inserts the pending message row and its SendTask in
// one transaction, enforcing the §4.3.1 enqueue-as-a-unit invariant.
func (d *DB) SendMessageWithTask(ctx context.Context, m Message, clientMsgNo, payload string) (Message, uint64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, 0, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO message (
			server_message_id, channel_id, channel_type, from_uid, timestamp,
			content, message_type, status, pts, order_seq, extra
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ServerMessageID, m.ChannelID, m.ChannelType, m.FromUID, m.Timestamp,
		m.Content, m.MessageType, StatusPending, m.Pts, m.OrderSeq, m.Extra,
	)
	if err != nil {
		return Message{}, 0, fmt.Errorf("insert pending message: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return Message{}, 0, fmt.Errorf("pending message id: %w", err)
	}

	taskRes, err := tx.ExecContext(ctx, `
		INSERT INTO send_task (message_id, client_msg_no, channel_id, channel_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msgID, clientMsgNo, m.ChannelID, m.ChannelType, payload, time.Now().UnixMilli(),
	)
	if err != nil {
		return Message{}, 0, fmt.Errorf("insert send task: %w", err)
	}
	taskID, err := taskRes.LastInsertId()
	if err != nil {
		return Message{}, 0, fmt.Errorf("send task id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, 0, fmt.Errorf("commit enqueue: %w", err)
	}

	m.ID = uint64(msgID)
	m.Status = StatusPending
	return m, uint64(taskID), nil
}

// DequeueReadyTasks returns up to limit non-terminal tasks whose
// next_retry_at has elapsed, ordered by id (FIFO within a channel).
func (d *DB) DequeueReadyTasks(ctx context.Context, limit int) ([]SendTaskRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, message_id, client_msg_no, channel_id, channel_type, payload,
			attempt_count, next_retry_at, last_error_class, terminal, created_at
		FROM send_task
		WHERE terminal = 0 AND next_retry_at <= ?
		ORDER BY id ASC
		LIMIT ?`, time.Now().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue ready tasks: %w", err)
	}
	defer rows.Close()

	var out []SendTaskRow
	for rows.Next() {
		var t SendTaskRow
		var terminal int
		if err := rows.Scan(&t.ID, &t.MessageID, &t.ClientMsgNo, &t.ChannelID, &t.ChannelType, &t.Payload,
			&t.AttemptCount, &t.NextRetryAt, &t.LastErrorClass, &terminal, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan send task: %w", err)
		}
		t.Terminal = terminal != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkTaskRetry bumps attempt_count and sets next_retry_at/last_error_class
// for a task that failed but may still be retried.
func (d *DB) MarkTaskRetry(ctx context.Context, taskID uint64, nextRetryAt int64, errorClass string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE send_task SET attempt_count = attempt_count + 1, next_retry_at = ?, last_error_class = ?
		WHERE id = ?`, nextRetryAt, errorClass, taskID,
	)
	if err != nil {
		return fmt.Errorf("mark task retry: %w", err)
	}
	return nil
}

// MarkTaskTerminal flags a task as done (success or permanent failure) and
// removes it from the active queue; the Message row keeps the tombstone.
func (d *DB) MarkTaskTerminal(ctx context.Context, taskID uint64) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM send_task WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("mark task terminal: %w", err)
	}
	return nil
}

// GetSendTask returns one send_task row.
func (d *DB) GetSendTask(ctx context.Context, taskID uint64) (SendTaskRow, error) {
	var t SendTaskRow
	var terminal int
	err := d.conn.QueryRowContext(ctx, `
		SELECT id, message_id, client_msg_no, channel_id, channel_type, payload,
			attempt_count, next_retry_at, last_error_class, terminal, created_at
		FROM send_task WHERE id = ?`, taskID,
	).Scan(&t.ID, &t.MessageID, &t.ClientMsgNo, &t.ChannelID, &t.ChannelType, &t.Payload,
		&t.AttemptCount, &t.NextRetryAt, &t.LastErrorClass, &terminal, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SendTaskRow{}, ErrNotFound
	}
	if err != nil {
		return SendTaskRow{}, fmt.Errorf("get send task: %w", err)
	}
	t.Terminal = terminal != 0
	return t, nil
}

// CancelPendingTasks deletes every non-terminal task and marks its message
// failed, used when logout drains the send queue (§5). It returns how many
// tasks it cancelled.
func (d *DB) CancelPendingTasks(ctx context.Context) (int64, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, message_id FROM send_task WHERE terminal = 0`)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}
	type pair struct{ taskID, msgID uint64 }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.taskID, &p.msgID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan pending task: %w", err)
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var n int64
	for _, p := range pairs {
		if _, err := d.conn.ExecContext(ctx, `DELETE FROM send_task WHERE id = ?`, p.taskID); err != nil {
			return n, fmt.Errorf("cancel task %d: %w", p.taskID, err)
		}
		if _, err := d.conn.ExecContext(ctx, `UPDATE message SET status = ? WHERE id = ?`, StatusFailed, p.msgID); err != nil {
			return n, fmt.Errorf("mark message %d cancelled: %w", p.msgID, err)
		}
		n++
	}
	return n, nil
}
