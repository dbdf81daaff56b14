package sdk

import (
	"context"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// GetMessageHistory returns the most recent limit messages of a channel,
// newest page first; pass 0 as beforeID to start from the newest message.
func (s *SDK) GetMessageHistory(ctx context.Context, channelID uint64, beforeID uint64, limit int) ([]store.Message, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	msgs, err := s.actor.MessagesBefore(ctx, channelID, beforeID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "GetMessageHistory", err)
	}
	return msgs, nil
}

// PaginateBack fetches the limit messages immediately preceding beforeID.
func (s *SDK) PaginateBack(ctx context.Context, channelID, beforeID uint64, limit int) ([]store.Message, error) {
	return s.GetMessageHistory(ctx, channelID, beforeID, limit)
}

// PaginateForward fetches the limit messages immediately following afterID.
func (s *SDK) PaginateForward(ctx context.Context, channelID, afterID uint64, limit int) ([]store.Message, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	msgs, err := s.actor.MessagesAfter(ctx, channelID, afterID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "PaginateForward", err)
	}
	return msgs, nil
}

// GetEarliestID returns the lowest message id stored locally for a channel.
func (s *SDK) GetEarliestID(ctx context.Context, channelID uint64) (uint64, bool, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, false, err
	}
	id, ok, err := s.actor.EarliestID(ctx, channelID)
	if err != nil {
		return 0, false, errs.Wrap(errs.KindDatabase, "GetEarliestID", err)
	}
	return id, ok, nil
}

// GetMessageByID fetches a single message by its local id.
func (s *SDK) GetMessageByID(ctx context.Context, messageID uint64) (store.Message, error) {
	if err := s.requireInitialized(); err != nil {
		return store.Message{}, err
	}
	m, err := s.actor.GetMessageByID(ctx, messageID)
	if err != nil {
		return store.Message{}, errs.Wrap(errs.KindDatabase, "GetMessageByID", err)
	}
	return m, nil
}

// GetChannels returns every locally known channel, newest activity first
// (the underlying query orders by last message timestamp).
func (s *SDK) GetChannels(ctx context.Context) ([]store.Channel, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	chs, err := s.actor.GetChannels(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "GetChannels", err)
	}
	return chs, nil
}

// GetOrCreateDirectChannel returns the direct channel with peerUserID,
// creating a local row for it if this is the first contact.
func (s *SDK) GetOrCreateDirectChannel(ctx context.Context, peerUserID uint64) (store.Channel, error) {
	if err := s.requireInitialized(); err != nil {
		return store.Channel{}, err
	}
	ch, err := s.actor.GetDirectChannelByID(ctx, peerUserID)
	if err == nil {
		return ch, nil
	}
	ch = store.Channel{ChannelID: peerUserID, ChannelType: store.ChannelTypeDirect}
	if err := s.actor.SaveChannel(ctx, ch); err != nil {
		return store.Channel{}, errs.Wrap(errs.KindDatabase, "GetOrCreateDirectChannel", err)
	}
	return ch, nil
}

// GetDirectChannelIDByPeerUserID is an alias kept for API symmetry with the
// group-channel lookups; a direct channel's id is the peer's user id.
func (s *SDK) GetDirectChannelIDByPeerUserID(peerUserID uint64) uint64 {
	return peerUserID
}

// ChannelProfile returns the channel row, its members (for groups), and the
// cached display row for each member.
func (s *SDK) ChannelProfile(ctx context.Context, channelID uint64, channelType int) (store.Channel, []store.ChannelMember, error) {
	if err := s.requireInitialized(); err != nil {
		return store.Channel{}, nil, err
	}
	ch, err := s.actor.GetChannelByChannel(ctx, channelID, channelType)
	if err != nil {
		return store.Channel{}, nil, errs.Wrap(errs.KindDatabase, "ChannelProfile", err)
	}
	if channelType != store.ChannelTypeGroup {
		return ch, nil, nil
	}
	members, err := s.actor.GetGroupMembers(ctx, channelID, channelType)
	if err != nil {
		return store.Channel{}, nil, errs.Wrap(errs.KindDatabase, "ChannelProfile", err)
	}
	return ch, members, nil
}

// PinChannel sets or clears a channel's pinned-to-top flag.
func (s *SDK) PinChannel(ctx context.Context, channelID uint64, channelType int, pinned bool) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.UpdateChannelTop(ctx, channelID, channelType, pinned); err != nil {
		return errs.Wrap(errs.KindDatabase, "PinChannel", err)
	}
	return nil
}

// HideChannel removes a channel from the default channel list without
// deleting its history (the "save" flag inverted).
func (s *SDK) HideChannel(ctx context.Context, channelID uint64, channelType int, hidden bool) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.UpdateChannelSave(ctx, channelID, channelType, !hidden); err != nil {
		return errs.Wrap(errs.KindDatabase, "HideChannel", err)
	}
	return nil
}

// MuteChannel sets or clears a channel's notification-mute flag.
func (s *SDK) MuteChannel(ctx context.Context, channelID uint64, channelType int, muted bool) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.UpdateChannelMute(ctx, channelID, channelType, muted); err != nil {
		return errs.Wrap(errs.KindDatabase, "MuteChannel", err)
	}
	return nil
}

// SetChannelLowPriority sets or clears a channel's low-priority placement.
func (s *SDK) SetChannelLowPriority(ctx context.Context, channelID uint64, channelType int, low bool) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.UpdateChannelLowPriority(ctx, channelID, channelType, low); err != nil {
		return errs.Wrap(errs.KindDatabase, "SetChannelLowPriority", err)
	}
	return nil
}

// DeleteChannel removes a channel and its local history.
func (s *SDK) DeleteChannel(ctx context.Context, channelID uint64, channelType int) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.actor.DeleteChannel(ctx, channelID, channelType); err != nil {
		return errs.Wrap(errs.KindDatabase, "DeleteChannel", err)
	}
	return nil
}
