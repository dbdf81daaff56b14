package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/internal/queue"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// SyncStateEntry reports one channel's gap-sync outcome (§4.7, scenario S4).
type SyncStateEntry struct {
	ChannelID uint64
	NeedsSync bool
	LocalPts  uint64
	ServerPts uint64
}

// Coordinator is the Sync Coordinator (C10).
type Coordinator struct {
	actor   *store.Actor
	fetcher Fetcher
	em      *events.Manager
	policy  *queue.RetryPolicy

	stopCh    chan struct{}
	loopDone  chan struct{}
}

// NewCoordinator builds a Coordinator. retryCfg shares the same shape as
// the send queue's retry_config, per §4.7's "same policy shape".
func NewCoordinator(actor *store.Actor, fetcher Fetcher, em *events.Manager, retryCfg queue.RetryConfig) *Coordinator {
	return &Coordinator{
		actor:   actor,
		fetcher: fetcher,
		em:      em,
		policy:  queue.NewRetryPolicy(retryCfg),
	}
}

// IsBootstrapCompleted reports whether every bootstrap stage has a
// completed cursor. Callers must block on RunBootstrapSync when this
// returns false, per §4.7.
func (c *Coordinator) IsBootstrapCompleted(ctx context.Context) (bool, error) {
	for _, kind := range bootstrapStages {
		row, err := c.actor.GetSyncCursor(ctx, string(kind), "")
		if err != nil {
			return false, err
		}
		if !row.Completed {
			return false, nil
		}
	}
	return true, nil
}

// RunBootstrapSync runs Friend, then Group, then Channel, then
// UserSettings, in strict serial order. If a stage fails, later stages are
// not attempted and the bootstrap-completed bit (derived from the per-stage
// cursor rows) stays unset — spec testable property 7.
func (c *Coordinator) RunBootstrapSync(ctx context.Context) error {
	c.reportPhase(events.SyncRunning, "")
	for _, kind := range bootstrapStages {
		if err := c.SyncEntities(ctx, kind); err != nil {
			c.reportPhase(events.SyncError, err.Error())
			return fmt.Errorf("bootstrap stage %s: %w", kind, err)
		}
	}
	c.reportPhase(events.SyncIdle, "")
	return nil
}

// RunBootstrapSyncInBackground starts RunBootstrapSync on its own goroutine
// and returns a channel that receives its final error (nil on success).
func (c *Coordinator) RunBootstrapSyncInBackground(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.RunBootstrapSync(ctx) }()
	return done
}

// SyncEntities runs one bootstrap stage to completion, paging until the
// fetcher reports no more data. The stage performs a full sync if no local
// cursor exists yet, otherwise an incremental sync from the stored cursor.
func (c *Coordinator) SyncEntities(ctx context.Context, kind EntityKind) error {
	cursorRow, err := c.actor.GetSyncCursor(ctx, string(kind), "")
	if err != nil {
		return err
	}
	full := cursorRow.Cursor == ""
	cursor := cursorRow.Cursor

	for {
		page, err := c.fetcher.FetchStage(ctx, kind, cursor, full)
		if err != nil {
			return fmt.Errorf("fetch stage %s: %w", kind, err)
		}
		if err := c.persistStagePage(ctx, kind, page); err != nil {
			return err
		}
		cursor = page.NextCursor
		if err := c.actor.SaveSyncCursor(ctx, store.SyncCursorRow{
			EntityKind: string(kind),
			Cursor:     cursor,
			Completed:  !page.HasMore,
		}); err != nil {
			return err
		}
		if !page.HasMore {
			return nil
		}
		full = false
	}
}

// SyncEntitiesInBackground runs SyncEntities on its own goroutine.
func (c *Coordinator) SyncEntitiesInBackground(ctx context.Context, kind EntityKind) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.SyncEntities(ctx, kind) }()
	return done
}

func (c *Coordinator) persistStagePage(ctx context.Context, kind EntityKind, page StagePage) error {
	switch kind {
	case EntityFriend:
		if len(page.Friends) > 0 {
			return c.actor.SaveFriends(ctx, page.Friends)
		}
	case EntityGroup:
		if len(page.Groups) > 0 {
			if err := c.actor.SaveGroups(ctx, page.Groups); err != nil {
				return err
			}
		}
		if len(page.Members) > 0 {
			return c.actor.SaveChannelMembers(ctx, page.Members)
		}
	case EntityChannel:
		for _, ch := range page.Channels {
			if err := c.actor.SaveChannel(ctx, ch); err != nil {
				return err
			}
		}
	case EntityUserSettings:
		if len(page.Users) > 0 {
			return c.actor.SaveUsers(ctx, page.Users)
		}
	}
	return nil
}

// SyncChannel closes a pts gap for one channel (§4.7's "per-channel pts gap
// sync", scenario S4). A no-op (NeedsSync == false) when local_pts already
// meets or exceeds serverPts.
func (c *Coordinator) SyncChannel(ctx context.Context, channelID uint64, channelType int, serverPts uint64) (SyncStateEntry, error) {
	ch, err := c.actor.GetChannelByChannel(ctx, channelID, channelType)
	if err != nil {
		return SyncStateEntry{}, err
	}
	if ch.LastMsgPts >= serverPts {
		return SyncStateEntry{ChannelID: channelID, NeedsSync: false, LocalPts: ch.LastMsgPts, ServerPts: serverPts}, nil
	}

	page, err := c.fetcher.FetchChannelGap(ctx, channelID, channelType, ch.LastMsgPts, serverPts)
	if err != nil {
		return SyncStateEntry{}, fmt.Errorf("fetch channel gap: %w", err)
	}

	for _, m := range page.Messages {
		id, inserted, err := c.actor.SaveReceivedMessage(ctx, m, false)
		if err != nil {
			return SyncStateEntry{}, err
		}
		if !inserted {
			continue
		}
		c.em.Publish(events.KindTimelineDiff, events.TimelineDiff{
			ChannelID: channelID,
			Op:        events.DiffAppend,
			ItemID:    id,
		})
	}
	if err := c.actor.UpdateChannelPts(ctx, channelID, channelType, serverPts); err != nil {
		return SyncStateEntry{}, err
	}
	return SyncStateEntry{ChannelID: channelID, NeedsSync: false, LocalPts: serverPts, ServerPts: serverPts}, nil
}

// SyncAllChannels walks every channel in serverPts and closes any gap found.
// serverPts is keyed by channel_id and carries the authoritative pts most
// recently observed for that channel (e.g. from a ChannelListUpdate).
func (c *Coordinator) SyncAllChannels(ctx context.Context, serverPts map[uint64]uint64) error {
	channels, err := c.actor.GetChannels(ctx)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		sp, ok := serverPts[ch.ChannelID]
		if !ok || sp <= ch.LastMsgPts {
			continue
		}
		if _, err := c.SyncChannel(ctx, ch.ChannelID, ch.ChannelType, sp); err != nil {
			return fmt.Errorf("sync channel %d: %w", ch.ChannelID, err)
		}
	}
	return nil
}

// StartSupervisedSync runs bootstrap (if not already completed) and keeps
// retrying on failure under the shared backoff shape, reporting phase
// transitions through the Event Manager so the host UI can show "still
// trying" state. It returns immediately; call StopSupervisedSync to end the
// loop.
func (c *Coordinator) StartSupervisedSync(ctx context.Context) {
	c.stopCh = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.supervisedLoop(ctx)
}

// StopSupervisedSync signals the supervised loop to exit and waits for it.
func (c *Coordinator) StopSupervisedSync() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.loopDone
}

func (c *Coordinator) supervisedLoop(ctx context.Context) {
	defer close(c.loopDone)
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		completed, err := c.IsBootstrapCompleted(ctx)
		if err == nil && !completed {
			err = c.RunBootstrapSync(ctx)
		}
		if err == nil {
			attempt = 0
			c.reportPhase(events.SyncIdle, "")
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-time.After(30 * time.Second):
			}
			continue
		}

		nextAt, retry := c.policy.Decide(queue.ClassNetworkTransient, attempt)
		if !retry {
			c.reportPhase(events.SyncError, err.Error())
			return
		}
		c.reportPhase(events.SyncBackingOff, err.Error())
		slog.Warn("sync loop backing off", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-time.After(time.Until(nextAt)):
		}
		attempt++
	}
}

func (c *Coordinator) reportPhase(phase events.SyncPhase, errMsg string) {
	c.em.Publish(events.KindSyncStatus, events.SyncStatus{Phase: phase, Err: errMsg, At: time.Now()})
}
