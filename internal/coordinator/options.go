package coordinator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

const (
	DefaultCallTimeout    = 30 * time.Second
	DefaultPlanDeadline   = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second

	// maxBackoffShift caps the exponent of the retry backoff.
	maxBackoffShift = 16
)

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger for the coordinator
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMaxInFlight caps the number of provider calls in flight at once across
// every plan the coordinator executes. Zero or less means unbounded.
func WithMaxInFlight(n int) Option {
	return func(c *Coordinator) {
		c.maxInFlight = n
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.callTimeout = d
	}
}

// WithPlanDeadline sets the aggregate deadline of one plan. Zero disables it.
func WithPlanDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		c.planDeadline = d
	}
}

// WithRetries sets how many times a retryable failure is retried and the
// first backoff. Backoff doubles after each retry.
func WithRetries(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Coordinator) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
	}
}

// WithSleep replaces the backoff wait. Tests use it to avoid real sleeps.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// WithEventPublisher publishes lifecycle events for every plan.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(c *Coordinator) {
		c.events = p
	}
}

// WithTracer sets the tracer used for plan and intent spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

// WithConfig applies the coordinator section of the service config. Zero
// durations keep the defaults. MaxRetries is taken as given, so zero turns
// retries off; only a negative value keeps the default.
func WithConfig(cfg config.CoordinatorConfig) Option {
	return func(c *Coordinator) {
		c.maxInFlight = cfg.MaxInFlight
		if cfg.CallTimeout > 0 {
			c.callTimeout = cfg.CallTimeout
		}
		if cfg.PlanDeadline > 0 {
			c.planDeadline = cfg.PlanDeadline
		}
		if cfg.MaxRetries >= 0 {
			c.maxRetries = cfg.MaxRetries
		}
		if cfg.InitialBackoff > 0 {
			c.initialBackoff = cfg.InitialBackoff
		}
	}
}

// backoffFor returns the wait before the retry following attempt (zero
// based): initial doubled per attempt, with the exponent capped.
func backoffFor(initial time.Duration, attempt int) time.Duration {
	return initial * time.Duration(1<<min(attempt, maxBackoffShift))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
