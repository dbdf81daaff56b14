package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// wsSession carries one Envelope per WebSocket text message.
type wsSession struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	incoming  chan Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func dialWebSocket(ctx context.Context, addr string) (Session, error) {
	url := "wss://" + addr + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	ws := &wsSession{
		conn:     conn,
		incoming: make(chan Envelope, 256),
		closed:   make(chan struct{}),
	}
	go ws.readLoop()
	return ws, nil
}

func (w *wsSession) Protocol() Protocol { return ProtocolWebSocket }

func (w *wsSession) Send(ctx context.Context, env Envelope) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("websocket send: %w", err)
	}
	return nil
}

func (w *wsSession) Incoming() <-chan Envelope { return w.incoming }

func (w *wsSession) Closed() <-chan struct{} { return w.closed }

func (w *wsSession) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return w.conn.Close()
}

func (w *wsSession) readLoop() {
	defer func() {
		w.closeOnce.Do(func() { close(w.closed) })
		close(w.incoming)
	}()

	for {
		var env Envelope
		if err := w.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case w.incoming <- env:
		case <-w.closed:
			return
		}
	}
}
