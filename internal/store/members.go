package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveUser upserts one directory row.
func (d *DB) SaveUser(ctx context.Context, u User) error {
	return d.SaveUsers(ctx, []User{u})
}

// SaveUsers upserts a batch of directory rows in one transaction.
func (d *DB) SaveUsers(ctx context.Context, users []User) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save users: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range users {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user (user_id, username, nickname, avatar, user_type) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET username = excluded.username, nickname = excluded.nickname,
				avatar = excluded.avatar, user_type = excluded.user_type`,
			u.UserID, u.Username, u.Nickname, u.Avatar, u.UserType,
		); err != nil {
			return fmt.Errorf("upsert user %d: %w", u.UserID, err)
		}
	}
	return tx.Commit()
}

// GetUser returns one cached directory row.
func (d *DB) GetUser(ctx context.Context, userID uint64) (User, error) {
	var u User
	err := d.conn.QueryRowContext(ctx,
		`SELECT user_id, username, nickname, avatar, user_type FROM user WHERE user_id = ?`, userID,
	).Scan(&u.UserID, &u.Username, &u.Nickname, &u.Avatar, &u.UserType)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUsersByIDs returns every cached directory row among the given ids.
func (d *DB) GetUsersByIDs(ctx context.Context, userIDs []uint64) ([]User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT user_id, username, nickname, avatar, user_type FROM user WHERE user_id IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Username, &u.Nickname, &u.Avatar, &u.UserType); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveFriend upserts one friend row.
func (d *DB) SaveFriend(ctx context.Context, f Friend) error {
	return d.SaveFriends(ctx, []Friend{f})
}

// SaveFriends upserts a batch of friend rows in one transaction.
func (d *DB) SaveFriends(ctx context.Context, friends []Friend) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save friends: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixMilli()
	for _, f := range friends {
		createdAt := f.CreatedAt
		if createdAt == 0 {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO friend (user_id, alias, created_at) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET alias = excluded.alias`,
			f.UserID, f.Alias, createdAt,
		); err != nil {
			return fmt.Errorf("upsert friend %d: %w", f.UserID, err)
		}
	}
	return tx.Commit()
}

// GetFriends returns every friend row.
func (d *DB) GetFriends(ctx context.Context) ([]Friend, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT user_id, alias, created_at FROM friend ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("get friends: %w", err)
	}
	defer rows.Close()

	var out []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.UserID, &f.Alias, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFriend removes one friend row.
func (d *DB) DeleteFriend(ctx context.Context, userID uint64) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM friend WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete friend: %w", err)
	}
	return nil
}

// SaveChannelMember upserts one membership row.
func (d *DB) SaveChannelMember(ctx context.Context, m ChannelMember) error {
	return d.SaveChannelMembers(ctx, []ChannelMember{m})
}

// SaveChannelMembers upserts a batch of membership rows in one transaction.
func (d *DB) SaveChannelMembers(ctx context.Context, members []ChannelMember) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save channel members: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_member (channel_id, channel_type, member_uid, role, remark, invite_chain)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_id, channel_type, member_uid) DO UPDATE SET
				role = excluded.role, remark = excluded.remark, invite_chain = excluded.invite_chain`,
			m.ChannelID, m.ChannelType, m.MemberUID, m.Role, m.Remark, m.InviteChain,
		); err != nil {
			return fmt.Errorf("upsert channel member: %w", err)
		}
	}
	return tx.Commit()
}

// GetGroupMembers returns every membership row for a group channel.
func (d *DB) GetGroupMembers(ctx context.Context, channelID uint64, channelType int) ([]ChannelMember, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT channel_id, channel_type, member_uid, role, remark, invite_chain
		FROM channel_member WHERE channel_id = ? AND channel_type = ?`, channelID, channelType)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	defer rows.Close()

	var out []ChannelMember
	for rows.Next() {
		var m ChannelMember
		if err := rows.Scan(&m.ChannelID, &m.ChannelType, &m.MemberUID, &m.Role, &m.Remark, &m.InviteChain); err != nil {
			return nil, fmt.Errorf("scan channel member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChannelMember removes one membership row.
func (d *DB) DeleteChannelMember(ctx context.Context, channelID uint64, channelType int, memberUID uint64) error {
	_, err := d.conn.ExecContext(ctx,
		`DELETE FROM channel_member WHERE channel_id = ? AND channel_type = ? AND member_uid = ?`,
		channelID, channelType, memberUID,
	)
	if err != nil {
		return fmt.Errorf("delete channel member: %w", err)
	}
	return nil
}

// SaveGroups upserts a batch of group rows in one transaction.
func (d *DB) SaveGroups(ctx context.Context, groups []Group) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save groups: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO "group" (group_id, owner_id, avatar, dismissed) VALUES (?, ?, ?, ?)
			ON CONFLICT(group_id) DO UPDATE SET owner_id = excluded.owner_id, avatar = excluded.avatar,
				dismissed = excluded.dismissed`,
			g.GroupID, g.OwnerID, g.Avatar, boolInt(g.Dismissed),
		); err != nil {
			return fmt.Errorf("upsert group %d: %w", g.GroupID, err)
		}
	}
	return tx.Commit()
}

// GetGroup returns one group row.
func (d *DB) GetGroup(ctx context.Context, groupID uint64) (Group, error) {
	var g Group
	var dismissed int
	err := d.conn.QueryRowContext(ctx,
		`SELECT group_id, owner_id, avatar, dismissed FROM "group" WHERE group_id = ?`, groupID,
	).Scan(&g.GroupID, &g.OwnerID, &g.Avatar, &dismissed)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	g.Dismissed = dismissed != 0
	return g, nil
}

// GetGroups returns every group row.
func (d *DB) GetGroups(ctx context.Context) ([]Group, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT group_id, owner_id, avatar, dismissed FROM "group"`)
	if err != nil {
		return nil, fmt.Errorf("get groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		var dismissed int
		if err := rows.Scan(&g.GroupID, &g.OwnerID, &g.Avatar, &dismissed); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Dismissed = dismissed != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveReadReceipt records that uid has read up through lastReadMsgID in a
// channel; backs is_event_read_by / seen_by_for_event.
func (d *DB) SaveReadReceipt(ctx context.Context, channelID, uid, lastReadMsgID uint64) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO read_receipts (channel_id, uid, last_read_msg_id, last_read_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(channel_id, uid) DO UPDATE SET
			last_read_msg_id = excluded.last_read_msg_id, last_read_at = excluded.last_read_at`,
		channelID, uid, lastReadMsgID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save read receipt: %w", err)
	}
	return nil
}

// IsEventReadBy reports whether uid's receipt covers messageID.
func (d *DB) IsEventReadBy(ctx context.Context, channelID, uid, messageID uint64) (bool, error) {
	var lastRead uint64
	err := d.conn.QueryRowContext(ctx,
		`SELECT last_read_msg_id FROM read_receipts WHERE channel_id = ? AND uid = ?`, channelID, uid,
	).Scan(&lastRead)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is event read by: %w", err)
	}
	return lastRead >= messageID, nil
}

// SeenByForEvent returns every uid whose receipt covers messageID.
func (d *DB) SeenByForEvent(ctx context.Context, channelID, messageID uint64) ([]uint64, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT uid FROM read_receipts WHERE channel_id = ? AND last_read_msg_id >= ?`, channelID, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("seen by for event: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan seen by: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}
