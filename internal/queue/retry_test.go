package queue

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyDefaultsToNetworkTransient(t *testing.T) {
	if got := Classify(errors.New("boom")); got != ClassNetworkTransient {
		t.Errorf("Classify = %q, want %q", got, ClassNetworkTransient)
	}
}

type fakeClassifiable struct{ class ErrorClass }

func (f fakeClassifiable) Error() string     { return "fake" }
func (f fakeClassifiable) Class() ErrorClass { return f.class }

func TestClassifyHonorsClassifiableError(t *testing.T) {
	err := fakeClassifiable{class: ClassFatalClient}
	if got := Classify(err); got != ClassFatalClient {
		t.Errorf("Classify = %q, want %q", got, ClassFatalClient)
	}
}

func TestRetryPolicyFatalNeverRetries(t *testing.T) {
	p := NewRetryPolicy(DefaultRetryConfig())
	if _, retry := p.Decide(ClassFatalClient, 0); retry {
		t.Error("fatal-client must never retry")
	}
	if _, retry := p.Decide(ClassCancelled, 0); retry {
		t.Error("cancelled must never retry")
	}
}

func TestRetryPolicyStopsAtMaxRetries(t *testing.T) {
	cfg := DefaultRetryConfig() // max_retries: 3
	p := NewRetryPolicy(cfg)

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if _, retry := p.Decide(ClassNetworkTransient, attempt); !retry {
			t.Fatalf("attempt %d: expected retry, got none", attempt)
		}
	}
	if _, retry := p.Decide(ClassNetworkTransient, cfg.MaxRetries); retry {
		t.Errorf("attempt %d: expected terminal failure, got retry", cfg.MaxRetries)
	}
}

// TestRetryBudgetEnvelopes exercises testable property 8: with
// {max_retries:3, base_delay_ms:100, max_delay_ms:1000, backoff_factor:2.0},
// delays for attempts 0, 1, 2 are drawn from [0,100), [0,200), [0,400) ms.
func TestRetryBudgetEnvelopes(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelayMs: 100, MaxDelayMs: 1000, BackoffFactor: 2.0}
	p := NewRetryPolicy(cfg)

	envelopes := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for attempt, envelope := range envelopes {
		for trial := 0; trial < 20; trial++ {
			d := p.delay(attempt)
			if d < 0 || d >= envelope {
				t.Fatalf("attempt %d trial %d: delay = %v, want in [0, %v)", attempt, trial, d, envelope)
			}
		}
	}
}

func TestRetryDelayClampsToMaxInterval(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 10, BaseDelayMs: 100, MaxDelayMs: 300, BackoffFactor: 2.0}
	p := NewRetryPolicy(cfg)
	// attempt 5 would be 100*2^5 = 3200ms uncapped; must clamp to 300ms.
	for trial := 0; trial < 20; trial++ {
		d := p.delay(5)
		if d >= 300*time.Millisecond {
			t.Fatalf("delay = %v, want < 300ms (max_delay_ms clamp)", d)
		}
	}
}

func TestMaxAttemptsIsInitialPlusRetries(t *testing.T) {
	cfg := DefaultRetryConfig()
	if got := cfg.MaxAttempts(); got != 4 {
		t.Errorf("MaxAttempts = %d, want 4", got)
	}
}
