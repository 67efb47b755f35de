// Package guard bounds every call to a catalog backend: each attempt is
// time-boxed, transient failures are retried with backoff, and a circuit
// breaker stops hammering a backend that keeps failing. Calls are counted
// and timed in Prometheus.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
	"github.com/eigenbahn/dynix/pkg/logger"
	"github.com/eigenbahn/dynix/pkg/metrics"
	"github.com/eigenbahn/dynix/pkg/resilience"
)

const (
	opCount = "count"
	opFetch = "fetch"
)

type Backend struct {
	catalog.Backend
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
	metrics *metrics.Metrics
}

// Wrap guards next. m may be nil.
func Wrap(next catalog.Backend, cfg config.ResilienceConfig, m *metrics.Metrics) *Backend {
	name := next.Name()
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(resilience.StateClosed))
		cbCfg.OnStateChange = func(n string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(n).Set(float64(to))
		}
	}
	return &Backend{
		Backend: next,
		breaker: resilience.NewCircuitBreaker(name, cbCfg),
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Retryable:    retryable,
		},
		timeout: cfg.CallTimeout,
		metrics: m,
	}
}

func (b *Backend) Count(ctx context.Context, p predicate.Predicate) (int, error) {
	var n int
	err := b.call(ctx, opCount, func(ctx context.Context) error {
		var err error
		n, err = b.Backend.Count(ctx, p)
		return err
	})
	return n, err
}

func (b *Backend) FetchDetailed(ctx context.Context, p predicate.Predicate) ([]catalog.Item, error) {
	var items []catalog.Item
	err := b.call(ctx, opFetch, func(ctx context.Context) error {
		var err error
		items, err = b.Backend.FetchDetailed(ctx, p)
		return err
	})
	return items, err
}

// State reports the breaker state, for health checks.
func (b *Backend) State() resilience.State {
	return b.breaker.State()
}

func (b *Backend) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	name := b.Name()
	err := resilience.Retry(ctx, name+"."+op, b.retry, func() error {
		return b.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, b.timeout, name+"."+op, fn)
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}

	if b.metrics != nil {
		b.metrics.BackendRequestsTotal.WithLabelValues(name, op, status(err)).Inc()
		b.metrics.BackendLatency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logger.FromContext(ctx).Warn("backend call failed",
			"component", "backend-guard",
			"backend", name,
			"op", op,
			"error", err,
			"latency", time.Since(start),
		)
	}
	return err
}

// retryable excludes failures another attempt cannot fix.
func retryable(err error) bool {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, catalog.ErrEmptyPredicate),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, apperrors.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
