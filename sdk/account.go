package sdk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// authPayload is sent as the sole envelope of the authenticate handshake.
// The detailed wire codec is explicitly out of scope for this module; this
// is the minimal shape the rest of the facade needs to drive a session.
type authPayload struct {
	UserID   uint64 `json:"user_id"`
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

// Register is a thin pass-through to the server's account-creation RPC,
// whose shape is out of scope here; it returns the server-assigned user id
// from the ack payload.
func (s *SDK) Register(ctx context.Context, username, password string) (uint64, error) {
	if err := s.requireConnected(); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return 0, errs.Wrap(errs.KindConfig, "Register", err)
	}
	ack, err := s.roundTrip(ctx, transport.Envelope{Kind: transport.KindMessage, Payload: payload})
	if err != nil {
		return 0, errs.Wrap(errs.KindTransport, "Register", err)
	}
	var resp struct {
		UserID uint64 `json:"user_id"`
	}
	if err := json.Unmarshal(ack.Payload, &resp); err != nil {
		return 0, errs.Wrap(errs.KindTransport, "Register", err)
	}
	return resp.UserID, nil
}

// Login records the credentials used by the next Connect/Authenticate; it
// does not itself touch the network.
func (s *SDK) Login(uid uint64, token, deviceID string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = uid
	s.token = token
	s.deviceID = deviceID
	return nil
}

// Authenticate sends the login handshake over the already-connected
// session and waits for its ack.
func (s *SDK) Authenticate(ctx context.Context) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	s.mu.RLock()
	req := authPayload{UserID: s.uid, Token: s.token, DeviceID: s.deviceID}
	s.mu.RUnlock()

	payload, err := json.Marshal(req)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "Authenticate", err)
	}
	if _, err := s.roundTrip(ctx, transport.Envelope{Kind: transport.KindMessage, Payload: payload}); err != nil {
		return errs.Wrap(errs.KindTransport, "Authenticate", err)
	}
	return nil
}

// Logout drains the send queue (in-flight attempts finish or time out,
// queued tasks are deleted and their messages marked failed, per §5), stops the supervised sync
// loop, and disconnects the transport session. The store and its
// background goroutines stay up; call Shutdown to tear those down too.
func (s *SDK) Logout(ctx context.Context) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if s.coordinator != nil {
		s.coordinator.StopSupervisedSync()
	}
	if _, err := s.q.Drain(ctx); err != nil {
		return errs.Wrap(errs.KindDatabase, "Logout", err)
	}
	return s.Disconnect(ctx)
}

// roundTrip sends an envelope and waits for the next Incoming envelope
// carrying an ack, up to the configured connection timeout. Concurrent
// roundTrip calls race on Incoming; the wire RPC codec (correlation ids,
// multiplexed in-flight requests) is out of scope here (see DESIGN.md).
func (s *SDK) roundTrip(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	s.mu.RLock()
	sess := s.session
	timeout := s.cfg.ConnectionTimeout()
	s.mu.RUnlock()
	if sess == nil {
		return transport.Envelope{}, errs.New(errs.KindNotConnected, "roundTrip", "not connected")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if err := sess.Send(ctx, req); err != nil {
		return transport.Envelope{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case env, ok := <-sess.Incoming():
		if !ok {
			return transport.Envelope{}, errs.New(errs.KindTransport, "roundTrip", "session closed")
		}
		return env, nil
	case <-waitCtx.Done():
		return transport.Envelope{}, waitCtx.Err()
	}
}
