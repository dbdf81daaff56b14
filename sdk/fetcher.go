package sdk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/privchat/privchat-sdk-sub000/internal/store"
	syncpkg "github.com/privchat/privchat-sdk-sub000/internal/sync"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// transportFetcher implements sync.Fetcher over a KindChannelSync envelope.
// The wire shape below is this facade's own invention, since the detailed
// RPC codec is out of scope (see DESIGN.md); it exists only so the Sync
// Coordinator has something concrete to call.
type transportFetcher struct {
	sdk *SDK
}

type stageRequest struct {
	Op     string `json:"op"`
	Kind   string `json:"kind"`
	Cursor string `json:"cursor"`
	Full   bool   `json:"full"`
}

type stageResponse struct {
	Friends    []store.Friend        `json:"friends,omitempty"`
	Groups     []store.Group         `json:"groups,omitempty"`
	Channels   []store.Channel       `json:"channels,omitempty"`
	Members    []store.ChannelMember `json:"members,omitempty"`
	Users      []store.User          `json:"users,omitempty"`
	NextCursor string                `json:"next_cursor"`
	HasMore    bool                  `json:"has_more"`
}

func (f *transportFetcher) FetchStage(ctx context.Context, kind syncpkg.EntityKind, cursor string, full bool) (syncpkg.StagePage, error) {
	req := stageRequest{Op: "stage", Kind: string(kind), Cursor: cursor, Full: full}
	payload, err := json.Marshal(req)
	if err != nil {
		return syncpkg.StagePage{}, fmt.Errorf("marshal stage request: %w", err)
	}
	ack, err := f.sdk.roundTrip(ctx, transport.Envelope{Kind: transport.KindChannelSync, Payload: payload})
	if err != nil {
		return syncpkg.StagePage{}, fmt.Errorf("fetch stage %s: %w", kind, err)
	}
	var resp stageResponse
	if err := json.Unmarshal(ack.Payload, &resp); err != nil {
		return syncpkg.StagePage{}, fmt.Errorf("decode stage %s response: %w", kind, err)
	}
	return syncpkg.StagePage{
		Friends:    resp.Friends,
		Groups:     resp.Groups,
		Channels:   resp.Channels,
		Members:    resp.Members,
		Users:      resp.Users,
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}, nil
}

type channelGapRequest struct {
	Op          string `json:"op"`
	ChannelID   uint64 `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	FromPts     uint64 `json:"from_pts"`
	ToPts       uint64 `json:"to_pts"`
}

type channelGapResponse struct {
	Messages []store.Message `json:"messages"`
}

func (f *transportFetcher) FetchChannelGap(ctx context.Context, channelID uint64, channelType int, fromPts, toPts uint64) (syncpkg.ChannelGapPage, error) {
	req := channelGapRequest{Op: "channel_gap", ChannelID: channelID, ChannelType: channelType, FromPts: fromPts, ToPts: toPts}
	payload, err := json.Marshal(req)
	if err != nil {
		return syncpkg.ChannelGapPage{}, fmt.Errorf("marshal channel gap request: %w", err)
	}
	ack, err := f.sdk.roundTrip(ctx, transport.Envelope{Kind: transport.KindChannelSync, ChannelID: channelID, Payload: payload})
	if err != nil {
		return syncpkg.ChannelGapPage{}, fmt.Errorf("fetch channel gap %d: %w", channelID, err)
	}
	var resp channelGapResponse
	if err := json.Unmarshal(ack.Payload, &resp); err != nil {
		return syncpkg.ChannelGapPage{}, fmt.Errorf("decode channel gap %d response: %w", channelID, err)
	}
	return syncpkg.ChannelGapPage{Messages: resp.Messages}, nil
}
