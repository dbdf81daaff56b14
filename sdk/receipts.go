package sdk

import (
	"context"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// ChannelUnreadStats returns the local read cursor for a channel: the last
// message id the local user has seen and when.
func (s *SDK) ChannelUnreadStats(ctx context.Context, channelID uint64) (store.ChannelReadState, error) {
	if err := s.requireInitialized(); err != nil {
		return store.ChannelReadState{}, err
	}
	rs, err := s.actor.ChannelReadState(ctx, channelID)
	if err != nil {
		return store.ChannelReadState{}, errs.Wrap(errs.KindDatabase, "ChannelUnreadStats", err)
	}
	return rs, nil
}

// OwnLastRead is a convenience accessor returning only the last-read
// message id from ChannelUnreadStats.
func (s *SDK) OwnLastRead(ctx context.Context, channelID uint64) (uint64, error) {
	rs, err := s.ChannelUnreadStats(ctx, channelID)
	if err != nil {
		return 0, err
	}
	return rs.LastReadID, nil
}

// MarkFullyReadAt is an alias for MarkAsRead kept for host code that thinks
// in terms of "read up to" rather than "mark as read".
func (s *SDK) MarkFullyReadAt(ctx context.Context, channelID uint64, channelType int, messageID uint64) error {
	return s.MarkAsRead(ctx, channelID, channelType, messageID)
}

// MarkChannelRead is the direct store-facing alias of MarkAsRead.
func (s *SDK) MarkChannelRead(ctx context.Context, channelID uint64, channelType int, messageID uint64) error {
	return s.MarkAsRead(ctx, channelID, channelType, messageID)
}

// IsEventReadBy reports whether uid's last-read cursor for channelID has
// reached at least messageID.
func (s *SDK) IsEventReadBy(ctx context.Context, channelID, uid, messageID uint64) (bool, error) {
	if err := s.requireInitialized(); err != nil {
		return false, err
	}
	read, err := s.actor.IsEventReadBy(ctx, channelID, uid, messageID)
	if err != nil {
		return false, errs.Wrap(errs.KindDatabase, "IsEventReadBy", err)
	}
	return read, nil
}

// SeenByForEvent returns every user id whose read cursor for channelID has
// reached at least messageID, for read-receipt avatar stacks.
func (s *SDK) SeenByForEvent(ctx context.Context, channelID, messageID uint64) ([]uint64, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	ids, err := s.actor.SeenByForEvent(ctx, channelID, messageID)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "SeenByForEvent", err)
	}
	return ids, nil
}
