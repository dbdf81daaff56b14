package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestMonitorPublishesTransitionOnReport(t *testing.T) {
	m := New(Config{})
	ch, token := m.Subscribe()
	defer m.Unsubscribe(token)

	m.Report(StatusOnline)

	select {
	case tr := <-ch:
		if tr.New != StatusOnline || tr.Old != StatusConnecting {
			t.Errorf("transition = %+v, want connecting->online", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transition")
	}
	if m.Status() != StatusOnline {
		t.Errorf("Status() = %v, want online", m.Status())
	}
}

func TestMonitorDoesNotRepublishSameStatus(t *testing.T) {
	m := New(Config{})
	m.Report(StatusOnline)
	ch, token := m.Subscribe()
	defer m.Unsubscribe(token)

	m.Report(StatusOnline) // no-op: already online

	select {
	case tr := <-ch:
		t.Fatalf("unexpected transition %+v for a no-op status report", tr)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorProbeTransitionsOnDialFailure(t *testing.T) {
	m := New(Config{ProbeTarget: "example.invalid:1", ProbeEvery: time.Hour, ProbeTimeout: time.Second})
	m.dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("simulated unreachable")
	}

	ch, token := m.Subscribe()
	defer m.Unsubscribe(token)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case tr := <-ch:
		if tr.New != StatusOffline {
			t.Errorf("transition = %+v, want offline", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for probe transition")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := New(Config{})
	ch, token := m.Subscribe()
	m.Unsubscribe(token)

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}
