package queue

import (
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/privchat/privchat-sdk-sub000/internal/errs"
)

// ErrorClass is the outcome of classifying a send attempt's failure, per
// §4.3.3.
type ErrorClass string

const (
	ClassNetworkTransient ErrorClass = "network_transient"
	ClassServerRetryable  ErrorClass = "server_retryable"
	ClassFatalClient      ErrorClass = "fatal_client"
	ClassCancelled        ErrorClass = "cancelled"
)

// RetryConfig mirrors the host-facing retry_config shape shared by the send
// pipeline and the sync supervisor (§6).
type RetryConfig struct {
	MaxRetries    int
	BaseDelayMs   int64
	MaxDelayMs    int64
	BackoffFactor float64
}

// DefaultRetryConfig matches the scenario in spec testable property 8.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelayMs: 100, MaxDelayMs: 1000, BackoffFactor: 2.0}
}

// RetryPolicy turns a classified error and attempt count into a decision:
// retry at some future time, or give up for good.
type RetryPolicy struct {
	cfg RetryConfig
	// rng is injectable so tests can assert exact delays instead of ranges.
	rng func() float64
}

// NewRetryPolicy builds a policy from a host-supplied configuration.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	return &RetryPolicy{cfg: cfg, rng: rand.Float64}
}

// Classify maps a transport/store error into one of the four error classes.
// A ClassifiableError lets callers (the transport layer, mainly) report a
// class explicitly; anything else defaults to network-transient, matching
// "when in doubt, treat it as recoverable" from §4.3.3.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var ce ClassifiableError
	if errors.As(err, &ce) {
		return ce.Class()
	}
	if errors.Is(err, errTaskCancelled) {
		return ClassCancelled
	}
	var se *errs.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case errs.KindTransport:
			return ClassNetworkTransient
		case errs.KindInvalidOperation, errs.KindConfig:
			return ClassFatalClient
		}
	}
	return ClassNetworkTransient
}

// ClassifiableError lets a transport implementation report its own error
// class instead of relying on Classify's defaults.
type ClassifiableError interface {
	error
	Class() ErrorClass
}

// errTaskCancelled marks a task cancelled by an explicit drain (logout).
var errTaskCancelled = errors.New("send task cancelled")

// ErrTaskCancelled is returned by a worker when a task was cancelled out
// from under it (e.g. CancelPendingTasks ran mid-attempt).
var ErrTaskCancelled = errTaskCancelled

// Decide returns the next-retry time for attempt (0-based, i.e. attempt 0 is
// the initial try that just failed) and whether the task should retry at
// all. It never needs class for anything but fatal-client/cancelled, which
// never retry regardless of attempt count.
func (p *RetryPolicy) Decide(class ErrorClass, attempt int) (nextRetryAt time.Time, retry bool) {
	if class == ClassFatalClient || class == ClassCancelled {
		return time.Time{}, false
	}
	if attempt >= p.cfg.MaxRetries {
		return time.Time{}, false
	}
	delay := p.delay(attempt)
	return time.Now().Add(delay), true
}

// delay computes min(max_delay, base_delay * factor^attempt) and then
// samples full jitter in [0, that) — matching spec testable property 8's
// [0, 100), [0, 200), [0, 400) ms envelopes for attempts 0, 1, 2 under the
// default config. The envelope itself comes from NextBackOff, called
// attempt+1 times from a fresh Reset; RandomizationFactor is left at zero so
// the library returns the bare envelope and full jitter is sampled here.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Duration(p.cfg.BaseDelayMs) * time.Millisecond,
		MaxInterval:         time.Duration(p.cfg.MaxDelayMs) * time.Millisecond,
		Multiplier:          p.cfg.BackoffFactor,
		RandomizationFactor: 0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var envelope time.Duration
	for i := 0; i <= attempt; i++ {
		envelope = b.NextBackOff()
	}

	return time.Duration(p.rng() * float64(envelope))
}

// MaxAttempts is the total number of tries a task gets, initial plus
// retries, for attempt-count bookkeeping and tests.
func (cfg RetryConfig) MaxAttempts() int {
	return cfg.MaxRetries + 1
}
