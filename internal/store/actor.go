package store

import (
	"context"
	"fmt"
)

// Actor is the single goroutine that owns a [DB]'s write path end to end
// (C1 Store Actor). It mirrors the Rust implementation's DbCommand enum and
// single-threaded executor, but leans on Go generics instead of an
// enum-and-match: a command is just a closure over *DB returning a typed
// result, submitted through a buffered channel and answered on a one-shot
// reply channel. No caller ever touches the underlying *sql.DB directly.
type Actor struct {
	db      *DB
	cmds    chan command
	closed  chan struct{}
	closeFn func()
}

// command is a type-erased unit of work; its run func closes over the
// caller's concrete result type and writes into its own one-shot reply.
type command struct {
	run func(db *DB)
}

// result is the one-shot reply channel a call() blocks on.
type result[T any] struct {
	val T
	err error
}

// NewActor starts the actor goroutine over an already-open DB. The caller
// must not use db directly after this call; all access must go through the
// returned Actor.
func NewActor(db *DB) *Actor {
	a := &Actor{
		db:     db,
		cmds:   make(chan command, 256),
		closed: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Actor) loop() {
	defer close(a.closed)
	for cmd := range a.cmds {
		cmd.run(a.db)
	}
}

// Close stops accepting new commands, drains the channel, and closes the
// underlying database. It blocks until the actor goroutine has exited.
func (a *Actor) Close() error {
	close(a.cmds)
	<-a.closed
	return a.db.Close()
}

// call submits fn to the actor and blocks for its reply, respecting ctx
// cancellation on both submission and reply (the command, once picked up by
// the loop, still runs to completion against the DB — SQLite has no
// mid-statement cancellation hook here).
func call[T any](ctx context.Context, a *Actor, fn func(db *DB) (T, error)) (T, error) {
	reply := make(chan result[T], 1)
	cmd := command{run: func(db *DB) {
		v, err := fn(db)
		reply <- result[T]{val: v, err: err}
	}}

	// Once Close has run, cmds is closed: refuse here rather than let the
	// select below pick a send on the closed channel.
	select {
	case <-a.closed:
		var zero T
		return zero, fmt.Errorf("store actor is closed")
	default:
	}

	select {
	case a.cmds <- cmd:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-a.closed:
		var zero T
		return zero, fmt.Errorf("store actor is closed")
	}

	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// SendMessageWithTask enqueues a pending message and its durable send task
// as one serialized unit of work (§4.1, §4.3.1).
func (a *Actor) SendMessageWithTask(ctx context.Context, m Message, clientMsgNo, payload string) (Message, uint64, error) {
	type pair struct {
		msg    Message
		taskID uint64
	}
	p, err := call(ctx, a, func(db *DB) (pair, error) {
		msg, taskID, err := db.SendMessageWithTask(ctx, m, clientMsgNo, payload)
		return pair{msg, taskID}, err
	})
	return p.msg, p.taskID, err
}

// SaveReceivedMessage runs the dedup-and-insert transaction for an inbound
// or echoed-back message. The returned bool is false when the message was
// a deduped repeat of one already stored.
func (a *Actor) SaveReceivedMessage(ctx context.Context, m Message, isOutgoing bool) (uint64, bool, error) {
	type saved struct {
		id       uint64
		inserted bool
	}
	s, err := call(ctx, a, func(db *DB) (saved, error) {
		id, inserted, err := db.SaveReceivedMessage(ctx, m, isOutgoing)
		return saved{id, inserted}, err
	})
	return s.id, s.inserted, err
}

// UpdateMessageStatus transitions a message's status.
func (a *Actor) UpdateMessageStatus(ctx context.Context, id uint64, status string) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateMessageStatus(ctx, id, status)
	})
	return err
}

// UpdateMessageServerID records the server-assigned id once an ack arrives.
func (a *Actor) UpdateMessageServerID(ctx context.Context, id, serverMessageID uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateMessageServerID(ctx, id, serverMessageID)
	})
	return err
}

// GetMessageByID reads one message row through the actor.
func (a *Actor) GetMessageByID(ctx context.Context, id uint64) (Message, error) {
	return call(ctx, a, func(db *DB) (Message, error) {
		return db.GetMessageByID(ctx, id)
	})
}

// MessagesBefore runs a paginated timeline read through the actor.
func (a *Actor) MessagesBefore(ctx context.Context, channelID, beforeID uint64, limit int) ([]Message, error) {
	return call(ctx, a, func(db *DB) ([]Message, error) {
		return db.MessagesBefore(ctx, channelID, beforeID, limit)
	})
}

// MessagesAfter runs a paginated timeline read through the actor.
func (a *Actor) MessagesAfter(ctx context.Context, channelID, afterID uint64, limit int) ([]Message, error) {
	return call(ctx, a, func(db *DB) ([]Message, error) {
		return db.MessagesAfter(ctx, channelID, afterID, limit)
	})
}

// GetChannels lists every non-deleted channel through the actor.
func (a *Actor) GetChannels(ctx context.Context) ([]Channel, error) {
	return call(ctx, a, func(db *DB) ([]Channel, error) {
		return db.GetChannels(ctx)
	})
}

// SaveChannel upserts a channel row through the actor.
func (a *Actor) SaveChannel(ctx context.Context, c Channel) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveChannel(ctx, c)
	})
	return err
}

// MarkChannelRead zeroes unread count and records the read cursor.
func (a *Actor) MarkChannelRead(ctx context.Context, channelID uint64, channelType int, lastReadID uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.MarkChannelRead(ctx, channelID, channelType, lastReadID)
	})
	return err
}

// InsertSendTask persists a new send_task row pointing at an already
// existing message, through the actor.
func (a *Actor) InsertSendTask(ctx context.Context, t SendTaskRow) (uint64, error) {
	return call(ctx, a, func(db *DB) (uint64, error) {
		return db.InsertSendTask(ctx, t)
	})
}

// DequeueReadyTasks fetches the next batch of ready send tasks through the
// actor, used by the send consumer pool's poll loop.
func (a *Actor) DequeueReadyTasks(ctx context.Context, limit int) ([]SendTaskRow, error) {
	return call(ctx, a, func(db *DB) ([]SendTaskRow, error) {
		return db.DequeueReadyTasks(ctx, limit)
	})
}

// MarkTaskRetry records a failed attempt and reschedules it.
func (a *Actor) MarkTaskRetry(ctx context.Context, taskID uint64, nextRetryAt int64, errorClass string) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.MarkTaskRetry(ctx, taskID, nextRetryAt, errorClass)
	})
	return err
}

// MarkTaskTerminal removes a task from the active queue.
func (a *Actor) MarkTaskTerminal(ctx context.Context, taskID uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.MarkTaskTerminal(ctx, taskID)
	})
	return err
}

// CancelPendingTasks drains the send queue on logout.
func (a *Actor) CancelPendingTasks(ctx context.Context) (int64, error) {
	return call(ctx, a, func(db *DB) (int64, error) {
		return db.CancelPendingTasks(ctx)
	})
}

// GetSyncCursor reads a sync cursor row through the actor.
func (a *Actor) GetSyncCursor(ctx context.Context, entityKind, scope string) (SyncCursorRow, error) {
	return call(ctx, a, func(db *DB) (SyncCursorRow, error) {
		return db.GetSyncCursor(ctx, entityKind, scope)
	})
}

// SaveSyncCursor writes a sync cursor row through the actor.
func (a *Actor) SaveSyncCursor(ctx context.Context, c SyncCursorRow) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveSyncCursor(ctx, c)
	})
	return err
}

// GetChannelByChannel reads one channel row through the actor.
func (a *Actor) GetChannelByChannel(ctx context.Context, channelID uint64, channelType int) (Channel, error) {
	return call(ctx, a, func(db *DB) (Channel, error) {
		return db.GetChannelByChannel(ctx, channelID, channelType)
	})
}

// UpdateChannelPts advances a channel's locally-observed pts through the
// actor, used by gap sync once the missing messages have been inserted.
func (a *Actor) UpdateChannelPts(ctx context.Context, channelID uint64, channelType int, pts uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateChannelPts(ctx, channelID, channelType, pts)
	})
	return err
}

// SaveFriends upserts a batch of friend rows through the actor.
func (a *Actor) SaveFriends(ctx context.Context, friends []Friend) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveFriends(ctx, friends)
	})
	return err
}

// GetFriends lists every friend row through the actor.
func (a *Actor) GetFriends(ctx context.Context) ([]Friend, error) {
	return call(ctx, a, func(db *DB) ([]Friend, error) {
		return db.GetFriends(ctx)
	})
}

// SaveGroups upserts a batch of group rows through the actor.
func (a *Actor) SaveGroups(ctx context.Context, groups []Group) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveGroups(ctx, groups)
	})
	return err
}

// GetGroups lists every group row through the actor.
func (a *Actor) GetGroups(ctx context.Context) ([]Group, error) {
	return call(ctx, a, func(db *DB) ([]Group, error) {
		return db.GetGroups(ctx)
	})
}

// SaveChannelMembers upserts a batch of channel_member rows through the
// actor.
func (a *Actor) SaveChannelMembers(ctx context.Context, members []ChannelMember) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveChannelMembers(ctx, members)
	})
	return err
}

// SaveUsers upserts a batch of directory rows through the actor.
func (a *Actor) SaveUsers(ctx context.Context, users []User) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveUsers(ctx, users)
	})
	return err
}

// EarliestID returns the oldest non-deleted message id in a channel through
// the actor, used as the before-cursor for "load even earlier" requests.
func (a *Actor) EarliestID(ctx context.Context, channelID uint64) (uint64, bool, error) {
	type pair struct {
		id uint64
		ok bool
	}
	p, err := call(ctx, a, func(db *DB) (pair, error) {
		id, ok, err := db.EarliestID(ctx, channelID)
		return pair{id, ok}, err
	})
	return p.id, p.ok, err
}

// GetDirectChannelByID reads the canonicalized direct channel through the
// actor, falling back to the legacy type-0 row.
func (a *Actor) GetDirectChannelByID(ctx context.Context, channelID uint64) (Channel, error) {
	return call(ctx, a, func(db *DB) (Channel, error) {
		return db.GetDirectChannelByID(ctx, channelID)
	})
}

// UpdateChannelSave flips a channel's favourite tag through the actor.
func (a *Actor) UpdateChannelSave(ctx context.Context, channelID uint64, channelType int, saved bool) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateChannelSave(ctx, channelID, channelType, saved)
	})
	return err
}

// UpdateChannelMute flips a channel's mute tag through the actor.
func (a *Actor) UpdateChannelMute(ctx context.Context, channelID uint64, channelType int, muted bool) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateChannelMute(ctx, channelID, channelType, muted)
	})
	return err
}

// UpdateChannelTop flips a channel's pinned tag through the actor.
func (a *Actor) UpdateChannelTop(ctx context.Context, channelID uint64, channelType int, pinned bool) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateChannelTop(ctx, channelID, channelType, pinned)
	})
	return err
}

// UpdateChannelLowPriority flips a channel's low-priority tag through the
// actor.
func (a *Actor) UpdateChannelLowPriority(ctx context.Context, channelID uint64, channelType int, low bool) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateChannelLowPriority(ctx, channelID, channelType, low)
	})
	return err
}

// DeleteChannel soft-deletes a channel through the actor.
func (a *Actor) DeleteChannel(ctx context.Context, channelID uint64, channelType int) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.DeleteChannel(ctx, channelID, channelType)
	})
	return err
}

// ChannelReadState reads the local user's own read cursor through the actor.
func (a *Actor) ChannelReadState(ctx context.Context, channelID uint64) (ChannelReadState, error) {
	return call(ctx, a, func(db *DB) (ChannelReadState, error) {
		return db.ChannelReadState(ctx, channelID)
	})
}

// UpdateMessageContent records an edit and updates content through the
// actor.
func (a *Actor) UpdateMessageContent(ctx context.Context, id uint64, newContent string) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.UpdateMessageContent(ctx, id, newContent)
	})
	return err
}

// RevokeMessage marks a message revoked through the actor.
func (a *Actor) RevokeMessage(ctx context.Context, id, revokedBy uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.RevokeMessage(ctx, id, revokedBy)
	})
	return err
}

// DeleteMessage soft-deletes a message through the actor.
func (a *Actor) DeleteMessage(ctx context.Context, id uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.DeleteMessage(ctx, id)
	})
	return err
}

// AddMessageReaction records a reaction through the actor.
func (a *Actor) AddMessageReaction(ctx context.Context, messageID, uid uint64, reaction string) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.AddMessageReaction(ctx, messageID, uid, reaction)
	})
	return err
}

// RemoveMessageReaction removes a reaction through the actor.
func (a *Actor) RemoveMessageReaction(ctx context.Context, messageID, uid uint64, reaction string) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.RemoveMessageReaction(ctx, messageID, uid, reaction)
	})
	return err
}

// SaveReadReceipt records a peer's read cursor through the actor.
func (a *Actor) SaveReadReceipt(ctx context.Context, channelID, uid, lastReadMsgID uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.SaveReadReceipt(ctx, channelID, uid, lastReadMsgID)
	})
	return err
}

// IsEventReadBy reports whether uid has read up to messageID through the
// actor.
func (a *Actor) IsEventReadBy(ctx context.Context, channelID, uid, messageID uint64) (bool, error) {
	return call(ctx, a, func(db *DB) (bool, error) {
		return db.IsEventReadBy(ctx, channelID, uid, messageID)
	})
}

// SeenByForEvent lists who has read up to messageID through the actor.
func (a *Actor) SeenByForEvent(ctx context.Context, channelID, messageID uint64) ([]uint64, error) {
	return call(ctx, a, func(db *DB) ([]uint64, error) {
		return db.SeenByForEvent(ctx, channelID, messageID)
	})
}

// GetUser reads one directory row through the actor.
func (a *Actor) GetUser(ctx context.Context, userID uint64) (User, error) {
	return call(ctx, a, func(db *DB) (User, error) {
		return db.GetUser(ctx, userID)
	})
}

// GetUsersByIDs reads a batch of directory rows through the actor.
func (a *Actor) GetUsersByIDs(ctx context.Context, userIDs []uint64) ([]User, error) {
	return call(ctx, a, func(db *DB) ([]User, error) {
		return db.GetUsersByIDs(ctx, userIDs)
	})
}

// DeleteFriend removes a friend row through the actor.
func (a *Actor) DeleteFriend(ctx context.Context, userID uint64) error {
	_, err := call(ctx, a, func(db *DB) (struct{}, error) {
		return struct{}{}, db.DeleteFriend(ctx, userID)
	})
	return err
}

// GetGroupMembers lists a channel's members through the actor.
func (a *Actor) GetGroupMembers(ctx context.Context, channelID uint64, channelType int) ([]ChannelMember, error) {
	return call(ctx, a, func(db *DB) ([]ChannelMember, error) {
		return db.GetGroupMembers(ctx, channelID, channelType)
	})
}

// Execute runs an arbitrary write statement through the actor, backing the
// generic host-facing Execute{sql, params} command.
func (a *Actor) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return call(ctx, a, func(db *DB) (int64, error) {
		return db.Execute(ctx, query, args...)
	})
}

// Query runs an arbitrary read statement through the actor, backing the
// generic host-facing Query{sql, params} command.
func (a *Actor) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return call(ctx, a, func(db *DB) ([]map[string]any, error) {
		return db.Query(ctx, query, args...)
	})
}
