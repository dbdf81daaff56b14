// Package transport implements the transport session abstraction (C7): a
// protocol-agnostic wire Envelope plus three concrete flavors (QUIC +
// WebTransport, TCP with length-prefixed framing, WebSocket) and ordered
// failover dialing across a list of configured endpoints.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Protocol names one of the three supported session flavors, used in
// Endpoint configuration and in observer-facing connection state.
type Protocol string

const (
	ProtocolQUIC      Protocol = "quic"
	ProtocolTCP       Protocol = "tcp"
	ProtocolWebSocket Protocol = "websocket"
)

// Endpoint is one configured server address the SDK will try to dial, in
// the order given by the host's servers config (§6).
type Endpoint struct {
	Protocol Protocol
	Addr     string // host:port, already normalized
}

// EnvelopeKind discriminates the payload carried by an Envelope.
type EnvelopeKind string

const (
	KindMessage     EnvelopeKind = "message"
	KindAck         EnvelopeKind = "ack"
	KindReceipt     EnvelopeKind = "receipt"
	KindTyping      EnvelopeKind = "typing"
	KindPresence    EnvelopeKind = "presence"
	KindPing        EnvelopeKind = "ping"
	KindPong        EnvelopeKind = "pong"
	KindChannelSync EnvelopeKind = "channel_sync"
)

// Envelope is the wire-level unit exchanged over any Session, independent
// of which protocol flavor carries it. Every flavor in this package frames
// the same JSON-encoded Envelope, so higher layers never branch on
// protocol.
type Envelope struct {
	Kind      EnvelopeKind    `json:"kind"`
	ChannelID uint64          `json:"channel_id,omitempty"`
	MessageID uint64          `json:"message_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Ts        int64           `json:"ts,omitempty"`
}

// Session is the protocol-agnostic handle over one connected transport
// link. Implementations own their own read pump and deliver inbound
// Envelopes on the channel returned by Incoming.
type Session interface {
	Protocol() Protocol
	Send(ctx context.Context, env Envelope) error
	Incoming() <-chan Envelope
	Closed() <-chan struct{}
	Close() error
}

// dialError is returned by Dial when every configured endpoint
// was tried and none connected.
type dialError struct {
	attempts []error
}

func (e *dialError) Error() string {
	return fmt.Sprintf("dial failed across %d endpoint(s): %v", len(e.attempts), e.attempts)
}

// Dial tries each endpoint in order, returning the first successful
// Session. This is the ordered-failover behavior backing reconnect in
// §4.6: a host lists servers in preference order and the SDK works down
// the list.
func Dial(ctx context.Context, endpoints []Endpoint, dialTimeout time.Duration) (Session, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("dial: no endpoints configured")
	}

	var errs []error
	for _, ep := range endpoints {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		sess, err := dialOne(dialCtx, ep)
		cancel()
		if err == nil {
			return sess, nil
		}
		errs = append(errs, fmt.Errorf("%s %s: %w", ep.Protocol, ep.Addr, err))
	}
	return nil, &dialError{attempts: errs}
}

// dialFuncs maps each protocol to its concrete dialer. Tests override
// entries here to exercise Dial's ordered-failover logic without a real
// network.
var dialFuncs = map[Protocol]func(ctx context.Context, addr string) (Session, error){
	ProtocolQUIC:      dialQUIC,
	ProtocolTCP:       dialTCP,
	ProtocolWebSocket: dialWebSocket,
}

func dialOne(ctx context.Context, ep Endpoint) (Session, error) {
	fn, ok := dialFuncs[ep.Protocol]
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q", ep.Protocol)
	}
	return fn(ctx, ep.Addr)
}
