package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("calibre", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	calls := 0
	fail := func() error { calls++; return errBackend }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("attempt %d: expected backend error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	if err := cb.Execute(fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("open breaker should not call through, got %d calls", calls)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after a good probe, got %s", cb.State())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: want %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("archive", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBackend })
	now = now.Add(time.Second)
	_ = cb.Execute(func() error { return errBackend })
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", cb.State())
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		retryable func(error) bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "recovers", failures: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "not retryable", failures: 5, attempts: 3, retryable: func(error) bool { return false }, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), "count", RetryConfig{
				MaxAttempts:  tt.attempts,
				InitialDelay: time.Millisecond,
				MaxDelay:     2 * time.Millisecond,
				Retryable:    tt.retryable,
			}, func() error {
				calls++
				if calls <= tt.failures {
					return errBackend
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if err != nil && !errors.Is(err, errBackend) {
				t.Errorf("expected wrapped backend error, got %v", err)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "fetch", RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}, func() error { return errBackend })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Jitter: 0.1}
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoff(attempt, cfg)
		if d > 330*time.Millisecond || d < 90*time.Millisecond {
			t.Fatalf("attempt %d: delay %v out of bounds", attempt, d)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "count", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	err = WithTimeout(context.Background(), time.Second, "count", func(ctx context.Context) error { return errBackend })
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected the call's own error, got %v", err)
	}

	if err := WithTimeout(context.Background(), 0, "count", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("zero timeout should call straight through: %v", err)
	}
}
