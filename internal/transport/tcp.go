package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
)

// maxFrameSize bounds a single length-prefixed frame so a corrupt or
// malicious length header cannot force an unbounded allocation.
const maxFrameSize = 16 * 1024 * 1024

// tcpSession frames each Envelope as a 4-byte big-endian length prefix
// followed by its JSON encoding, over a plain net.Conn.
type tcpSession struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex

	incoming  chan Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func dialTCP(ctx context.Context, addr string) (Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial: %w", err)
	}

	ts := &tcpSession{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		incoming: make(chan Envelope, 256),
		closed:   make(chan struct{}),
	}
	go ts.readLoop()
	return ts, nil
}

func (t *tcpSession) Protocol() Protocol { return ProtocolTCP }

func (t *tcpSession) Send(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if len(b) > maxFrameSize {
		return fmt.Errorf("tcp send: envelope too large (%d bytes)", len(b))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(b)))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("tcp send header: %w", err)
	}
	if _, err := t.conn.Write(b); err != nil {
		return fmt.Errorf("tcp send body: %w", err)
	}
	return nil
}

func (t *tcpSession) Incoming() <-chan Envelope { return t.incoming }

func (t *tcpSession) Closed() <-chan struct{} { return t.closed }

func (t *tcpSession) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

func (t *tcpSession) readLoop() {
	defer func() {
		t.closeOnce.Do(func() { close(t.closed) })
		close(t.incoming)
	}()

	for {
		var header [4]byte
		if _, err := io.ReadFull(t.reader, header[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(header[:])
		if n > maxFrameSize {
			return
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(t.reader, body); err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			continue
		}
		select {
		case t.incoming <- env:
		case <-t.closed:
			return
		}
	}
}
