package sdk

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// presenceState is the SDK's own small presence cache, kept current by
// inbound KindPresence envelopes; the wire protocol for subscribing a peer's
// presence on the server side is out of scope here (see DESIGN.md), so
// Subscribe/Fetch below are best-effort requests over the same envelope
// used for inbound updates.
type presenceState struct {
	mu   sync.RWMutex
	data map[uint64]bool

	subMu   sync.Mutex
	nextTok uint64
	subs    map[uint64]func(events.UserPresenceChanged)
}

func newPresenceState() *presenceState {
	return &presenceState{data: make(map[uint64]bool), subs: make(map[uint64]func(events.UserPresenceChanged))}
}

func (s *SDK) presence() *presenceState {
	s.presenceOnce.Do(func() { s.presenceCache = newPresenceState() })
	return s.presenceCache
}

func (s *SDK) setPresence(userID uint64, online bool) {
	p := s.presence()
	p.mu.Lock()
	p.data[userID] = online
	p.mu.Unlock()

	evt := events.UserPresenceChanged{UserID: userID, Online: online, At: time.Now()}
	p.subMu.Lock()
	fns := make([]func(events.UserPresenceChanged), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// GetPresence returns the last known online/offline state for one user and
// whether anything is cached for them yet.
func (s *SDK) GetPresence(userID uint64) (online bool, known bool) {
	p := s.presence()
	p.mu.RLock()
	defer p.mu.RUnlock()
	online, known = p.data[userID]
	return
}

// BatchGetPresence returns the cached presence for every requested user id;
// unknown users are simply absent from the result map.
func (s *SDK) BatchGetPresence(userIDs []uint64) map[uint64]bool {
	p := s.presence()
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[uint64]bool, len(userIDs))
	for _, id := range userIDs {
		if v, ok := p.data[id]; ok {
			out[id] = v
		}
	}
	return out
}

// FetchPresence asks the server for a user's current presence and updates
// the local cache before returning it.
func (s *SDK) FetchPresence(ctx context.Context, userID uint64) (bool, error) {
	if err := s.requireConnected(); err != nil {
		return false, err
	}
	payload, err := json.Marshal(map[string]uint64{"user_id": userID})
	if err != nil {
		return false, errs.Wrap(errs.KindConfig, "FetchPresence", err)
	}
	ack, err := s.roundTrip(ctx, transport.Envelope{Kind: transport.KindPresence, Payload: payload})
	if err != nil {
		return false, errs.Wrap(errs.KindTransport, "FetchPresence", err)
	}
	var resp struct {
		Online bool `json:"online"`
	}
	if err := json.Unmarshal(ack.Payload, &resp); err != nil {
		return false, errs.Wrap(errs.KindTransport, "FetchPresence", err)
	}
	s.setPresence(userID, resp.Online)
	return resp.Online, nil
}

// SubscribePresence registers obs to fire on every UserPresenceChanged and
// returns a token for UnsubscribePresence.
func (s *SDK) SubscribePresence(obs func(events.UserPresenceChanged)) uint64 {
	p := s.presence()
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.nextTok++
	tok := p.nextTok
	p.subs[tok] = obs
	return tok
}

// UnsubscribePresence removes a presence subscription by its token.
func (s *SDK) UnsubscribePresence(tok uint64) {
	p := s.presence()
	p.subMu.Lock()
	defer p.subMu.Unlock()
	delete(p.subs, tok)
}

// SendTyping notifies peers in channelID that the local user started typing.
func (s *SDK) SendTyping(ctx context.Context, channelID uint64) error {
	return s.sendTypingPhase(ctx, channelID, events.TypingStarted)
}

// StopTyping notifies peers in channelID that the local user stopped typing.
func (s *SDK) StopTyping(ctx context.Context, channelID uint64) error {
	return s.sendTypingPhase(ctx, channelID, events.TypingStopped)
}

func (s *SDK) sendTypingPhase(ctx context.Context, channelID uint64, phase events.TypingPhase) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{"user_id": s.uid, "phase": phase})
	if err != nil {
		return errs.Wrap(errs.KindConfig, "SendTyping", err)
	}
	s.mu.RLock()
	sess := s.session
	s.mu.RUnlock()
	if err := sess.Send(ctx, transport.Envelope{Kind: transport.KindTyping, ChannelID: channelID, Payload: payload}); err != nil {
		return errs.Wrap(errs.KindTransport, "SendTyping", err)
	}
	return nil
}
