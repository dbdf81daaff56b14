package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// quicSession wraps a WebTransport session over QUIC, carrying Envelopes
// newline-delimited-JSON over a single bidirectional control stream — the
// same shape as the teacher's ControlMsg stream, generalized to this
// module's Envelope type.
type quicSession struct {
	sess   *webtransport.Session
	stream *webtransport.Stream

	writeMu sync.Mutex

	incoming chan Envelope
	closed   chan struct{}
	closeOnce sync.Once
}

func dialQUIC(ctx context.Context, addr string) (Session, error) {
	d := webtransport.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec — self-signed server certs in dev/test deployments
		QUICConfig: &quic.Config{
			EnableDatagrams: true,
		},
	}

	_, sess, err := d.Dial(ctx, "https://"+addr, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("webtransport dial: %w", err)
	}

	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		sess.CloseWithError(0, "failed to open control stream")
		return nil, fmt.Errorf("open control stream: %w", err)
	}

	qs := &quicSession{
		sess:     sess,
		stream:   stream,
		incoming: make(chan Envelope, 256),
		closed:   make(chan struct{}),
	}
	go qs.readLoop()
	return qs, nil
}

func (q *quicSession) Protocol() Protocol { return ProtocolQUIC }

func (q *quicSession) Send(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	b = append(b, '\n')

	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if _, err := q.stream.Write(b); err != nil {
		return fmt.Errorf("quic send: %w", err)
	}
	return nil
}

func (q *quicSession) Incoming() <-chan Envelope { return q.incoming }

func (q *quicSession) Closed() <-chan struct{} { return q.closed }

func (q *quicSession) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	q.stream.Close() //nolint:errcheck
	return q.sess.CloseWithError(0, "client closing")
}

func (q *quicSession) readLoop() {
	defer func() {
		q.closeOnce.Do(func() { close(q.closed) })
		close(q.incoming)
	}()

	scanner := bufio.NewScanner(q.stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			continue // malformed frame: drop and keep reading
		}
		select {
		case q.incoming <- env:
		case <-q.closed:
			return
		}
	}
}
