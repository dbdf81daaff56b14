// Package sdk implements the SDK Facade (C11): the single outward-facing
// object a host application holds. It hides the C1-C10 topology behind a
// small, typed, synchronous method surface and owns the goroutines that do
// the actual asynchronous work.
package sdk

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/config"
	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/internal/network"
	"github.com/privchat/privchat-sdk-sub000/internal/queue"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
	syncpkg "github.com/privchat/privchat-sdk-sub000/internal/sync"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// SDK is the host-facing handle. The zero value is not usable; build one
// with New and call Initialize before anything else.
type SDK struct {
	mu  sync.RWMutex
	cfg config.SDKConfig

	uid      uint64
	token    string
	deviceID string

	actor       *store.Actor
	q           *queue.Queue
	em          *events.Manager
	monitor     *network.Monitor
	coordinator *syncpkg.Coordinator

	session   transport.Session
	connState events.ConnectionState

	presenceOnce  sync.Once
	presenceCache *presenceState

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	initialized bool
}

// New returns an uninitialized SDK handle.
func New() *SDK {
	return &SDK{connState: events.ConnDisconnected}
}

// Initialize opens the per-user store, wires the Event Manager, Network
// Monitor, Send Queue, and Sync Coordinator together, and starts their
// background goroutines. It must be called exactly once before any other
// method (besides a second Initialize, which fails).
func (s *SDK) Initialize(ctx context.Context, uid uint64, cfg config.SDKConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return errs.New(errs.KindConfig, "Initialize", "already initialized")
	}

	dbPath := filepath.Join(cfg.DataDir, fmt.Sprintf("user_%d.db", uid))
	db, err := store.Open(uid, dbPath, cfg.AssetsDir)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, "Initialize", err)
	}
	actor := store.NewActor(db)

	s.cfg = cfg
	s.uid = uid
	s.actor = actor
	s.em = events.NewManager(cfg.EventConfig.PollQueueCapacity)
	s.monitor = network.New(network.Config{})
	if len(cfg.Servers) > 0 {
		s.monitor = network.New(network.Config{ProbeTarget: cfg.Servers[0].Addr})
	}

	sender := transport.NewSessionSender(func() transport.Session {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.session
	})
	notifier := &eventNotifier{em: s.em}
	s.q = queue.New(actor, sender, notifier, s.monitor, queue.Config{
		Workers: cfg.QueueConfig.Workers,
		Retry:   cfg.RetryConfig.ToRetryConfig(),
	})

	fetcher := &transportFetcher{sdk: s}
	s.coordinator = syncpkg.NewCoordinator(actor, fetcher, s.em, cfg.RetryConfig.ToRetryConfig())

	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.wg.Add(2)
	go func() { defer s.wg.Done(); s.em.Run(s.runCtx) }()
	go func() { defer s.wg.Done(); s.monitor.Run(s.runCtx) }()
	s.q.Start(s.runCtx)

	s.initialized = true
	return nil
}

// eventNotifier adapts internal/queue.StatusNotifier to the Event Manager.
type eventNotifier struct{ em *events.Manager }

func (n *eventNotifier) NotifySendStatus(messageID, channelID uint64, status string, sendErr error) {
	state := events.SendState(status)
	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}
	n.em.Publish(events.KindSendStatus, events.SendStatusUpdate{
		MessageID: messageID,
		ChannelID: channelID,
		State:     state,
		Err:       errMsg,
		At:        time.Now(),
	})
}

// Shutdown stops every background goroutine and closes the store. Safe to
// call once; a second call is a no-op.
func (s *SDK) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}

	if s.coordinator != nil {
		s.coordinator.StopSupervisedSync()
	}
	if s.q != nil {
		s.q.Stop()
	}
	if s.session != nil {
		_ = s.session.Close()
		s.session = nil
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	s.wg.Wait()

	var err error
	if s.actor != nil {
		err = s.actor.Close()
	}
	s.initialized = false
	s.connState = events.ConnDisconnected
	return err
}

func (s *SDK) requireInitialized() error {
	if !s.initialized {
		return errs.New(errs.KindNotInitialized, "", "call Initialize first")
	}
	return nil
}

func (s *SDK) requireConnected() error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return errs.New(errs.KindNotConnected, "", "not connected")
	}
	return nil
}
