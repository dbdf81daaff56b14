// Command sdkdemo exercises the SDK facade end to end against a configured
// server: initialize, connect, send a message, and print inbound events
// until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/privchat/privchat-sdk-sub000/internal/config"
	"github.com/privchat/privchat-sdk-sub000/internal/events"
	"github.com/privchat/privchat-sdk-sub000/sdk"
)

func main() {
	var (
		dataDir  = flag.String("data-dir", "./data", "local SDK data directory")
		uid      = flag.Uint64("uid", 1, "local user id")
		token    = flag.String("token", "demo-token", "auth token")
		deviceID = flag.String("device-id", "demo-device", "device id")
		sendTo   = flag.Uint64("send-to", 0, "channel id to send a demo message to")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(*dataDir)

	s := sdk.New()
	if err := s.Initialize(ctx, *uid, cfg); err != nil {
		slog.Error("initialize failed", "err", err)
		os.Exit(1)
	}
	defer s.Shutdown(context.Background())

	s.ObserveSends(func(u events.SendStatusUpdate) {
		fmt.Printf("send status: message=%d state=%s err=%q\n", u.MessageID, u.State, u.Err)
	})
	s.ObserveChannelList(func(u events.ChannelListUpdateEvent) {
		fmt.Printf("channel list update: channel=%d op=%s\n", u.ChannelID, u.Op)
	})

	if err := s.Login(*uid, *token, *deviceID); err != nil {
		slog.Error("login failed", "err", err)
		os.Exit(1)
	}
	if err := s.Connect(ctx); err != nil {
		slog.Error("connect failed", "err", err)
		os.Exit(1)
	}

	if *sendTo != 0 {
		id, err := s.SendMessage(ctx, *sendTo, 1, "hello from sdkdemo")
		if err != nil {
			slog.Error("send failed", "err", err)
		} else {
			fmt.Printf("enqueued message %d\n", id)
		}
	}

	<-ctx.Done()
	fmt.Println("shutting down")
}
