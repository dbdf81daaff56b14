package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/privchat/privchat-sdk-sub000/internal/network"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// Config bundles the consumer pool's tunables, matching the host-facing
// queue_config shape (§6).
type Config struct {
	Workers int
	Retry   RetryConfig
}

// DefaultConfig matches the teacher's own "small bounded pool" sizing
// convention; four workers comfortably covers a typical conversation count
// without letting one slow channel monopolize the pool.
func DefaultConfig() Config {
	return Config{Workers: 4, Retry: DefaultRetryConfig()}
}

// Queue is the facade-facing handle over the send pipeline (C4): it owns
// enqueueing onto the store and the lifecycle of the underlying Consumer
// pool.
type Queue struct {
	actor    *store.Actor
	consumer *Consumer
	cancel   context.CancelFunc
}

// New wires a Queue over an already-running store actor and a transport
// Sender. monitor may be nil to disable reachability-gated pausing (§4.5).
// The pool is not started until Start is called.
func New(actor *store.Actor, sender Sender, notifier StatusNotifier, monitor *network.Monitor, cfg Config) *Queue {
	policy := NewRetryPolicy(cfg.Retry)
	return &Queue{
		actor:    actor,
		consumer: NewConsumer(actor, sender, notifier, policy, monitor, cfg.Workers),
	}
}

// Start runs the consumer pool in the background until Stop or ctx
// cancellation.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	go q.consumer.Run(ctx)
}

// Stop halts the consumer pool and waits for in-flight attempts to return.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.consumer.Stop()
}

// Metrics exposes the pool's counters to the facade's get_send_metrics.
func (q *Queue) Metrics() *Metrics { return q.consumer.Metrics() }

// Enqueue persists a new outbound message plus its durable send task in one
// transaction and returns the locally assigned message id immediately —
// per §4.8, send_message only reports enqueue failure, never send failure.
func (q *Queue) Enqueue(ctx context.Context, channelID uint64, channelType int, fromUID uint64, content, messageType string, extra map[string]any) (uint64, error) {
	extraJSON := ""
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			return 0, fmt.Errorf("marshal extra: %w", err)
		}
		extraJSON = string(b)
	}

	m := store.Message{
		ChannelID:   channelID,
		ChannelType: channelType,
		FromUID:     fromUID,
		Content:     content,
		MessageType: messageType,
		Extra:       extraJSON,
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	clientMsgNo := uuid.NewString()
	msg, _, err := q.actor.SendMessageWithTask(ctx, m, clientMsgNo, string(payload))
	if err != nil {
		return 0, fmt.Errorf("enqueue message: %w", err)
	}
	return msg.ID, nil
}

// RetryMessage re-arms a failed message for another attempt by inserting a
// fresh send_task row pointing at the existing message, used by the
// facade's explicit retry_message.
func (q *Queue) RetryMessage(ctx context.Context, messageID uint64) error {
	msg, err := q.actor.GetMessageByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("retry message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("retry message: marshal payload: %w", err)
	}
	if _, err := q.actor.InsertSendTask(ctx, store.SendTaskRow{
		MessageID:   msg.ID,
		ClientMsgNo: uuid.NewString(),
		ChannelID:   msg.ChannelID,
		ChannelType: msg.ChannelType,
		Payload:     string(payload),
	}); err != nil {
		return fmt.Errorf("retry message: %w", err)
	}
	return q.actor.UpdateMessageStatus(ctx, msg.ID, store.StatusPending)
}

// Drain cancels every non-terminal task, used on logout (§5 "Logout drains
// the send queue").
func (q *Queue) Drain(ctx context.Context) (int64, error) {
	return q.actor.CancelPendingTasks(ctx)
}
