package reliability

import (
	"context"
	"errors"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/pkg/circuitbreaker"
	"relaychat/pkg/config"
	"relaychat/pkg/retry"
	"relaychat/pkg/tracing"

	"go.uber.org/zap"
)

// StoreMetrics receives per-call storage observations.
type StoreMetrics interface {
	ObserveStoreOperation(driver, operation string, duration time.Duration, err error)
	SetCircuitState(name string, state int)
}

type Policy struct {
	Retry   retry.Config
	Breaker circuitbreaker.Config
}

func PolicyFromConfig(cfg *config.Config) Policy {
	r := retry.DefaultConfig()
	r.MaxAttempts = cfg.Reliability.Retry.MaxAttempts
	r.InitialDelay = cfg.Reliability.Retry.InitialDelay
	r.MaxDelay = cfg.Reliability.Retry.MaxDelay

	b := circuitbreaker.DefaultConfig()
	b.FailureThreshold = cfg.Reliability.CircuitBreaker.MaxFailures
	b.Timeout = cfg.Reliability.CircuitBreaker.ResetTimeout

	return Policy{Retry: r, Breaker: b}
}

// isOutcome reports errors that describe the data rather than a failing
// store. They are neither retried nor counted by the breaker.
func isOutcome(err error) bool {
	return errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, domain.ErrEmailTaken)
}

// guard runs store calls through retry and a circuit breaker, and records a
// span and a latency sample per call.
type guard struct {
	name    string
	driver  string
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	metrics StoreMetrics
	logger  *zap.SugaredLogger
}

func newGuard(name, driver string, policy Policy, metrics StoreMetrics, logger *zap.SugaredLogger) *guard {
	policy.Retry.Retryable = func(err error) bool {
		return !isOutcome(err) && !errors.Is(err, circuitbreaker.ErrOpen)
	}
	policy.Breaker.IsFailure = func(err error) bool {
		return !isOutcome(err)
	}

	g := &guard{
		name:    name,
		driver:  driver,
		retry:   policy.Retry,
		breaker: circuitbreaker.New(policy.Breaker),
		metrics: metrics,
		logger:  logger,
	}
	g.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("circuit breaker state changed",
			"store", name,
			"from", from.String(),
			"to", to.String(),
		)
		if metrics != nil {
			metrics.SetCircuitState(name, int(to))
		}
	})
	return g
}

func call[T any](ctx context.Context, g *guard, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, g.driver, operation)
	defer span.End()

	start := time.Now()
	result, err := retry.DoWithResult(ctx, g.retry, func() (T, error) {
		return circuitbreaker.ExecuteWithResult(ctx, g.breaker, func() (T, error) {
			return fn(ctx)
		})
	})

	failure := err
	if isOutcome(err) {
		failure = nil
	}
	if g.metrics != nil {
		g.metrics.ObserveStoreOperation(g.driver, operation, time.Since(start), failure)
	}
	if failure != nil {
		tracing.RecordError(ctx, failure)
		g.logger.Warnw("store operation failed",
			"store", g.name,
			"operation", operation,
			"error", failure,
		)
	}
	return result, err
}

func exec(ctx context.Context, g *guard, operation string, fn func(ctx context.Context) error) error {
	_, err := call(ctx, g, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
