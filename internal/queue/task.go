// Package queue implements the durable send pipeline: a per-channel serial
// FIFO (C4), a retry/backoff policy (C5), and a bounded consumer pool (C6).
package queue

import (
	"fmt"

	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// Task is the consumer pool's in-memory view of one store.SendTaskRow, kept
// alongside the original message payload so a worker never has to re-read
// the store for attributes it already holds.
type Task struct {
	ID          uint64
	MessageID   uint64
	ClientMsgNo string
	ChannelID   uint64
	ChannelType int
	Payload     string
	Attempt     int
}

// fromRow adapts a persisted send_task row into the in-memory Task the
// consumer pool schedules.
func fromRow(r store.SendTaskRow) Task {
	return Task{
		ID:          r.ID,
		MessageID:   r.MessageID,
		ClientMsgNo: r.ClientMsgNo,
		ChannelID:   r.ChannelID,
		ChannelType: r.ChannelType,
		Payload:     r.Payload,
		Attempt:     r.AttemptCount,
	}
}

// channelKey groups tasks that must never run concurrently with each other
// (§4.3.2's per-channel serial slot).
func channelKey(channelID uint64, channelType int) string {
	return fmt.Sprintf("%d:%d", channelID, channelType)
}
