package sdk

import (
	"context"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	syncpkg "github.com/privchat/privchat-sdk-sub000/internal/sync"
)

// IsBootstrapCompleted reports whether every bootstrap stage has finished
// at least once.
func (s *SDK) IsBootstrapCompleted(ctx context.Context) (bool, error) {
	if err := s.requireInitialized(); err != nil {
		return false, err
	}
	done, err := s.coordinator.IsBootstrapCompleted(ctx)
	if err != nil {
		return false, errs.Wrap(errs.KindDatabase, "IsBootstrapCompleted", err)
	}
	return done, nil
}

// RunBootstrapSync runs the full friend/group/channel/user_settings
// bootstrap sequence and blocks until it finishes or fails.
func (s *SDK) RunBootstrapSync(ctx context.Context) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if err := s.coordinator.RunBootstrapSync(ctx); err != nil {
		return errs.Wrap(errs.KindTransport, "RunBootstrapSync", err)
	}
	return nil
}

// RunBootstrapSyncInBackground starts RunBootstrapSync on a goroutine and
// returns a channel that receives its eventual error (nil on success).
func (s *SDK) RunBootstrapSyncInBackground(ctx context.Context) <-chan error {
	return s.coordinator.RunBootstrapSyncInBackground(ctx)
}

// SyncEntities re-syncs a single bootstrap stage on demand.
func (s *SDK) SyncEntities(ctx context.Context, kind syncpkg.EntityKind) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if err := s.coordinator.SyncEntities(ctx, kind); err != nil {
		return errs.Wrap(errs.KindTransport, "SyncEntities", err)
	}
	return nil
}

// SyncEntitiesInBackground is the background-goroutine form of SyncEntities.
func (s *SDK) SyncEntitiesInBackground(ctx context.Context, kind syncpkg.EntityKind) <-chan error {
	return s.coordinator.SyncEntitiesInBackground(ctx, kind)
}

// SyncChannel closes the message gap for one channel up to serverPts.
func (s *SDK) SyncChannel(ctx context.Context, channelID uint64, channelType int, serverPts uint64) (syncpkg.SyncStateEntry, error) {
	if err := s.requireConnected(); err != nil {
		return syncpkg.SyncStateEntry{}, err
	}
	entry, err := s.coordinator.SyncChannel(ctx, channelID, channelType, serverPts)
	if err != nil {
		return syncpkg.SyncStateEntry{}, errs.Wrap(errs.KindTransport, "SyncChannel", err)
	}
	return entry, nil
}

// SyncAllChannels closes the message gap for every channel named in
// serverPts (channelID -> latest known server pts).
func (s *SDK) SyncAllChannels(ctx context.Context, serverPts map[uint64]uint64) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if err := s.coordinator.SyncAllChannels(ctx, serverPts); err != nil {
		return errs.Wrap(errs.KindTransport, "SyncAllChannels", err)
	}
	return nil
}

// StartSupervisedSync starts the background bootstrap-then-idle loop; it is
// already started automatically by Connect, so hosts rarely need this
// directly.
func (s *SDK) StartSupervisedSync(ctx context.Context) {
	s.coordinator.StartSupervisedSync(ctx)
}

// StopSupervisedSync halts the supervised sync loop started by Connect or
// StartSupervisedSync.
func (s *SDK) StopSupervisedSync() {
	s.coordinator.StopSupervisedSync()
}
