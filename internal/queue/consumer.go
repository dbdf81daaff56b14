package queue

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/network"
	"github.com/privchat/privchat-sdk-sub000/internal/store"
)

// Sender is the narrow transport-facing dependency the consumer pool needs:
// deliver one task's payload and report whether the server accepted it. The
// transport layer supplies the concrete implementation; queue never depends
// on any particular protocol.
type Sender interface {
	Send(ctx context.Context, task Task) error
}

// StatusNotifier receives a status transition for a message, mirroring the
// host-facing SendStatusUpdate event (§4.9); wired to the event bus by the
// facade.
type StatusNotifier interface {
	NotifySendStatus(messageID, channelID uint64, status string, err error)
}

// Metrics aggregates pool-wide counters (§4.3.3), readable and clearable.
type Metrics struct {
	mu            sync.Mutex
	Attempts      uint64
	Successes     uint64
	Failures      uint64
	RetryCount    uint64
}

func (m *Metrics) recordAttempt() {
	m.mu.Lock()
	m.Attempts++
	m.mu.Unlock()
}

func (m *Metrics) recordSuccess() {
	m.mu.Lock()
	m.Successes++
	m.mu.Unlock()
}

func (m *Metrics) recordFailure(retried bool) {
	m.mu.Lock()
	m.Failures++
	if retried {
		m.RetryCount++
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the counters plus the derived average retries
// per attempt.
func (m *Metrics) Snapshot() (attempts, successes, failures, retries uint64, avgRetriesPerAttempt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempts, successes, failures, retries = m.Attempts, m.Successes, m.Failures, m.RetryCount
	if attempts > 0 {
		avgRetriesPerAttempt = float64(retries) / float64(attempts)
	}
	return
}

// Clear resets every counter to zero.
func (m *Metrics) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts, m.Successes, m.Failures, m.RetryCount = 0, 0, 0, 0
}

// delayedTask is one entry of the time-ordered delay queue (a min-heap on
// readyAt), holding a task waiting to be handed back to the worker pool.
type delayedTask struct {
	readyAt time.Time
	task    Task
}

type delayHeap []delayedTask

func (h delayHeap) Len() int            { return len(h) }
func (h delayHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h delayHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x any)         { *h = append(*h, x.(delayedTask)) }
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Consumer is the bounded worker pool (C6): it dequeues ready tasks from the
// store, enforces the per-channel serial slot, calls Sender, and routes
// failures either to terminal state or the time-ordered delay queue.
type Consumer struct {
	actor    *store.Actor
	sender   Sender
	notifier StatusNotifier
	policy   *RetryPolicy
	monitor  *network.Monitor
	workers  int
	pollEvery time.Duration

	metrics *Metrics

	mu         sync.Mutex
	inFlight   map[string]bool // channelKey -> a task for this channel is currently running
	delay      delayHeap
	delayTimer *time.Timer

	work chan Task

	stop chan struct{}
	done chan struct{}
}

// NewConsumer builds a pool over actor/sender with the given worker count
// and retry policy. workers bounds cross-channel parallelism (§4.3.2); it
// never bounds per-channel concurrency, which is always 1 regardless of
// worker count. monitor may be nil, in which case the pool never pauses for
// reachability (used by tests that don't care about §4.5).
func NewConsumer(actor *store.Actor, sender Sender, notifier StatusNotifier, policy *RetryPolicy, monitor *network.Monitor, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	c := &Consumer{
		actor:     actor,
		sender:    sender,
		notifier:  notifier,
		policy:    policy,
		monitor:   monitor,
		workers:   workers,
		pollEvery: 200 * time.Millisecond,
		metrics:   &Metrics{},
		inFlight:  make(map[string]bool),
		work:      make(chan Task, workers*4),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	heap.Init(&c.delay)
	return c
}

// online reports whether the pool should be dequeuing at all. A nil monitor
// means reachability isn't tracked (e.g. direct unit tests on Consumer) and
// the pool always runs.
func (c *Consumer) online() bool {
	return c.monitor == nil || c.monitor.Status() == network.StatusOnline
}

// Metrics exposes the pool's counters.
func (c *Consumer) Metrics() *Metrics { return c.metrics }

// Run starts the worker pool, the store poller, and the delay-queue
// processor. It blocks until ctx is cancelled or Stop is called.
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workerLoop(ctx)
		}()
	}

	go c.pollLoop(ctx)
	go c.delayLoop(ctx)

	<-ctx.Done()
	close(c.stop)
	wg.Wait()
}

// Stop requests the pool to halt and waits for workers to drain.
func (c *Consumer) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
}

// pollLoop periodically dequeues ready tasks from the store and offers each
// to a channel slot, respecting the per-channel serial guarantee: a task
// for a channel already in flight is left in the store for the next poll.
func (c *Consumer) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.drainReady(ctx)
		}
	}
}

func (c *Consumer) drainReady(ctx context.Context) {
	if !c.online() {
		// §4.5: while reachability isn't Online, the pool leaves tasks
		// sitting in the store untouched rather than flipping them to
		// sending and immediately failing the send attempt.
		return
	}
	rows, err := c.actor.DequeueReadyTasks(ctx, c.workers*4)
	if err != nil {
		slog.Warn("dequeue ready tasks failed", "err", err)
		return
	}
	for _, row := range rows {
		t := fromRow(row)
		key := channelKey(t.ChannelID, t.ChannelType)

		c.mu.Lock()
		busy := c.inFlight[key]
		c.mu.Unlock()
		if busy {
			continue
		}

		select {
		case c.work <- t:
		case <-ctx.Done():
			return
		default:
			// Work channel is saturated; this task stays in the store and
			// will be picked up again on the next poll tick.
		}
	}
}

func (c *Consumer) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case t := <-c.work:
			c.runTask(ctx, t)
		}
	}
}

func (c *Consumer) runTask(ctx context.Context, t Task) {
	key := channelKey(t.ChannelID, t.ChannelType)

	c.mu.Lock()
	if c.inFlight[key] {
		// Another worker grabbed this channel's slot between drainReady's
		// check and now; put the task back on the delay queue with no
		// backoff so it is retried on the next cycle instead of dropped.
		c.mu.Unlock()
		c.schedule(t, time.Now())
		return
	}
	c.inFlight[key] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	c.metrics.recordAttempt()
	if err := c.actor.UpdateMessageStatus(ctx, t.MessageID, store.StatusSending); err != nil {
		slog.Warn("mark sending failed", "message_id", t.MessageID, "err", err)
	}
	if c.notifier != nil {
		c.notifier.NotifySendStatus(t.MessageID, t.ChannelID, store.StatusSending, nil)
	}

	err := c.sender.Send(ctx, t)
	if err == nil {
		c.metrics.recordSuccess()
		if err := c.actor.UpdateMessageStatus(ctx, t.MessageID, store.StatusSent); err != nil {
			slog.Warn("mark sent failed", "message_id", t.MessageID, "err", err)
		}
		if err := c.actor.MarkTaskTerminal(ctx, t.ID); err != nil {
			slog.Warn("mark task terminal failed", "task_id", t.ID, "err", err)
		}
		if c.notifier != nil {
			c.notifier.NotifySendStatus(t.MessageID, t.ChannelID, store.StatusSent, nil)
		}
		return
	}

	class := Classify(err)
	nextRetryAt, retry := c.policy.Decide(class, t.Attempt)
	c.metrics.recordFailure(retry)

	if !retry {
		if err := c.actor.UpdateMessageStatus(ctx, t.MessageID, store.StatusFailed); err != nil {
			slog.Warn("mark failed failed", "message_id", t.MessageID, "err", err)
		}
		if err := c.actor.MarkTaskTerminal(ctx, t.ID); err != nil {
			slog.Warn("mark task terminal failed", "task_id", t.ID, "err", err)
		}
		if c.notifier != nil {
			c.notifier.NotifySendStatus(t.MessageID, t.ChannelID, store.StatusFailed, err)
		}
		return
	}

	if err := c.actor.MarkTaskRetry(ctx, t.ID, nextRetryAt.UnixMilli(), string(class)); err != nil {
		slog.Warn("mark task retry failed", "task_id", t.ID, "err", err)
	}
	t.Attempt++
	c.schedule(t, nextRetryAt)
}

// schedule inserts a task into the time-ordered delay queue so the
// delayLoop processor hands it back to the worker pool once readyAt passes,
// per §4.3.3 ("not re-enqueued to the main FIFO immediately").
func (c *Consumer) schedule(t Task, readyAt time.Time) {
	c.mu.Lock()
	heap.Push(&c.delay, delayedTask{readyAt: readyAt, task: t})
	next := c.delay[0].readyAt
	c.resetDelayTimerLocked(next)
	c.mu.Unlock()
}

func (c *Consumer) resetDelayTimerLocked(next time.Time) {
	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	if c.delayTimer == nil {
		c.delayTimer = time.NewTimer(d)
		return
	}
	if !c.delayTimer.Stop() {
		select {
		case <-c.delayTimer.C:
		default:
		}
	}
	c.delayTimer.Reset(d)
}

// delayLoop polls the delay heap and re-enqueues tasks whose readyAt has
// elapsed, independent of the store-backed poll loop — this is what keeps a
// retrying task from blocking fresh tasks on other channels (§4.3.3).
func (c *Consumer) delayLoop(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.drainDelayed(ctx)
		}
	}
}

func (c *Consumer) drainDelayed(ctx context.Context) {
	if !c.online() {
		return
	}
	now := time.Now()
	var ready []Task
	c.mu.Lock()
	for c.delay.Len() > 0 && !c.delay[0].readyAt.After(now) {
		d := heap.Pop(&c.delay).(delayedTask)
		ready = append(ready, d.task)
	}
	c.mu.Unlock()

	for _, t := range ready {
		select {
		case c.work <- t:
		case <-ctx.Done():
			return
		}
	}
}

// String implements fmt.Stringer for debug logging of a task's identity.
func (t Task) String() string {
	return fmt.Sprintf("task(id=%d msg=%d channel=%d/%d attempt=%d)", t.ID, t.MessageID, t.ChannelID, t.ChannelType, t.Attempt)
}
