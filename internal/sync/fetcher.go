// Package sync implements the Sync Coordinator (C10): bootstrap ordering
// across entity kinds, per-channel pts gap recovery, and a supervised loop
// that retries either under the same backoff shape the send queue uses.
package sync

import (
	"context"

	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// EntityKind names one bootstrap stage.
type EntityKind string

const (
	EntityFriend       EntityKind = "friend"
	EntityGroup        EntityKind = "group"
	EntityChannel      EntityKind = "channel"
	EntityUserSettings EntityKind = "user_settings"
)

// bootstrapStages is the strict serial order §4.7 requires: Friend, Group,
// Channel, UserSettings. If a stage fails, later stages are not attempted.
var bootstrapStages = []EntityKind{EntityFriend, EntityGroup, EntityChannel, EntityUserSettings}

// StagePage is one page of entity-sync results. Only the fields relevant to
// kind are populated; the rest are left zero.
type StagePage struct {
	Friends    []store.Friend
	Groups     []store.Group
	Channels   []store.Channel
	Members    []store.ChannelMember
	Users      []store.User
	NextCursor string
	HasMore    bool
}

// ChannelGapPage is the set of messages that closes a pts gap, in ascending
// pts order.
type ChannelGapPage struct {
	Messages []store.Message
}

// Fetcher is the remote half of sync. The SDK facade wires an
// implementation backed by the transport session; tests use a fake.
type Fetcher interface {
	// FetchStage retrieves the next page for one bootstrap stage. full is
	// true when no local cursor exists yet (first login of this device).
	FetchStage(ctx context.Context, kind EntityKind, cursor string, full bool) (StagePage, error)

	// FetchChannelGap retrieves every message in (fromPts, toPts] for one
	// channel, in ascending pts order.
	FetchChannelGap(ctx context.Context, channelID uint64, channelType int, fromPts, toPts uint64) (ChannelGapPage, error)
}
