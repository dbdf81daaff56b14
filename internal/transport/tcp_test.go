package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestTCPSessionRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan Envelope, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		srv := &tcpSession{conn: conn, reader: bufio.NewReader(conn), incoming: make(chan Envelope, 4), closed: make(chan struct{})}
		go srv.readLoop()
		env := <-srv.incoming
		serverDone <- env
		// Echo a response back.
		_ = srv.Send(context.Background(), Envelope{Kind: KindAck, MessageID: env.MessageID})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sess, err := dialTCP(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("dialTCP: %v", err)
	}
	defer sess.Close()

	want := Envelope{Kind: KindMessage, ChannelID: 1, MessageID: 42, Payload: json.RawMessage(`{"content":"hi"}`)}
	if err := sess.Send(ctx, want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-serverDone:
		if got.ChannelID != want.ChannelID || got.MessageID != want.MessageID {
			t.Errorf("server received %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive envelope")
	}

	select {
	case ack := <-sess.Incoming():
		if ack.Kind != KindAck || ack.MessageID != 42 {
			t.Errorf("client received %+v, want an ack for message 42", ack)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ack")
	}
}
