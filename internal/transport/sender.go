package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/privchat/privchat-sdk-sub000/internal/queue"
)

// SessionSender adapts a live Session to queue.Sender, letting the send
// consumer pool (C6) stay ignorant of which protocol is carrying traffic.
// The accessor it wraps returns whichever Session is current, so a
// reconnect swaps the underlying Session out from under SessionSender;
// callers always go through the same stable value.
type SessionSender struct {
	get func() Session
}

// NewSessionSender wraps a session accessor; passing one that reads the
// currently connected Session lets the Sender observe reconnects automatically.
func NewSessionSender(get func() Session) *SessionSender {
	return &SessionSender{get: get}
}

var _ queue.Sender = (*SessionSender)(nil)

// Send implements queue.Sender by marshalling the task payload into a
// KindMessage Envelope and handing it to the current session.
func (s *SessionSender) Send(ctx context.Context, task queue.Task) error {
	sess := s.get()
	if sess == nil {
		return fmt.Errorf("transport: not connected")
	}
	env := Envelope{
		Kind:      KindMessage,
		ChannelID: task.ChannelID,
		MessageID: task.MessageID,
		Payload:   json.RawMessage(task.Payload),
	}
	if err := sess.Send(ctx, env); err != nil {
		return fmt.Errorf("transport send: %w", err)
	}
	return nil
}
