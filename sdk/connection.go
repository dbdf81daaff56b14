package sdk

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/internal/network"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// Connect dials the configured server list in failover order, performs the
// authenticate handshake, and starts the session's receive loop and the
// supervised sync loop. ConnectionStateChanged events are published for
// every transition (§5's "totally ordered per transport session").
func (s *SDK) Connect(ctx context.Context) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.setConnState(events.ConnConnecting)

	sess, err := transport.Dial(ctx, s.cfg.Endpoints(), s.cfg.ConnectionTimeout())
	if err != nil {
		s.setConnState(events.ConnDisconnected)
		return errs.Wrap(errs.KindTransport, "Connect", err)
	}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	s.monitor.Report(network.StatusOnline)

	if err := s.Authenticate(ctx); err != nil {
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
		_ = sess.Close()
		s.setConnState(events.ConnDisconnected)
		return err
	}

	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.receiveLoop(s.runCtx, sess) }()

	s.coordinator.StartSupervisedSync(s.runCtx)
	s.setConnState(events.ConnConnected)
	return nil
}

// Disconnect closes the active transport session, if any. Idempotent.
func (s *SDK) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	err := sess.Close()
	s.monitor.Report(network.StatusOffline)
	s.setConnState(events.ConnDisconnected)
	if err != nil {
		return errs.Wrap(errs.KindTransport, "Disconnect", err)
	}
	return nil
}

// ConnectionState reports the current connection lifecycle state.
func (s *SDK) ConnectionState() events.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

func (s *SDK) setConnState(next events.ConnectionState) {
	s.mu.Lock()
	old := s.connState
	s.connState = next
	s.mu.Unlock()
	if old == next {
		return
	}
	s.em.Publish(events.KindConnectionState, events.ConnectionStateChanged{Old: old, New: next, At: time.Now()})
}

// receiveLoop is the "receive" half of §2's data flow: Transport event →
// Event Manager (raw) → dedup/store via Store Actor → Event Manager (typed
// MessageReceived + TimelineDiff + ChannelListUpdate).
func (s *SDK) receiveLoop(ctx context.Context, sess transport.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Closed():
			s.setConnState(events.ConnDisconnected)
			return
		case env, ok := <-sess.Incoming():
			if !ok {
				return
			}
			s.handleInbound(ctx, env)
		}
	}
}

func (s *SDK) handleInbound(ctx context.Context, env transport.Envelope) {
	switch env.Kind {
	case transport.KindMessage:
		s.handleInboundMessage(ctx, env)
	case transport.KindTyping:
		s.handleInboundTyping(env)
	case transport.KindReceipt:
		s.handleInboundReceipt(ctx, env)
	case transport.KindPresence:
		s.handleInboundPresence(env)
	default:
		slog.Debug("unhandled inbound envelope", "kind", env.Kind)
	}
}

func (s *SDK) handleInboundMessage(ctx context.Context, env transport.Envelope) {
	var m store.Message
	if err := json.Unmarshal(env.Payload, &m); err != nil {
		slog.Warn("decode inbound message failed", "err", err)
		return
	}
	id, inserted, err := s.actor.SaveReceivedMessage(ctx, m, false)
	if err != nil {
		slog.Warn("save received message failed", "err", err)
		return
	}
	if !inserted {
		// Deduped repeat delivery (same channel_id + server_message_id
		// already stored): no second Append for the same row (scenario S2).
		return
	}
	s.em.Publish(events.KindTimelineDiff, events.TimelineDiff{ChannelID: m.ChannelID, Op: events.DiffAppend, ItemID: id})
	s.em.Publish(events.KindChannelListUpdate, events.ChannelListUpdateEvent{Op: events.ChannelListUpdate, ChannelID: m.ChannelID})
}

func (s *SDK) handleInboundTyping(env transport.Envelope) {
	var t struct {
		UserID uint64             `json:"user_id"`
		Phase  events.TypingPhase `json:"phase"`
	}
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return
	}
	s.em.Publish(events.KindTypingUpdate, events.TypingIndicator{ChannelID: env.ChannelID, UserID: t.UserID, Phase: t.Phase, At: time.Now()})
}

func (s *SDK) handleInboundReceipt(ctx context.Context, env transport.Envelope) {
	var r struct {
		UserID uint64 `json:"user_id"`
		SeenID uint64 `json:"seen_id"`
	}
	if err := json.Unmarshal(env.Payload, &r); err != nil {
		return
	}
	if err := s.actor.SaveReadReceipt(ctx, env.ChannelID, r.UserID, r.SeenID); err != nil {
		slog.Warn("save read receipt failed", "err", err)
	}
	s.em.Publish(events.KindReceiptUpdate, events.ReadReceiptReceived{ChannelID: env.ChannelID, UserID: r.UserID, SeenID: r.SeenID, At: time.Now()})
}

func (s *SDK) handleInboundPresence(env transport.Envelope) {
	var p struct {
		UserID uint64 `json:"user_id"`
		Online bool   `json:"online"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	s.setPresence(p.UserID, p.Online)
}
