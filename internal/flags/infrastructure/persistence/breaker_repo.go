package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	// FailureThreshold trips the breaker after this many consecutive failures.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerRepository guards a repository with a circuit breaker so a failing
// store is not hammered by every decision. A missing flag is a successful read.
type BreakerRepository struct {
	next    domain.Repository
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerRepository wraps next.
func NewBreakerRepository(next domain.Repository, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *BreakerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        "flag-store",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrFlagNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Gauge(observability.MetricStoreBreakerState, float64(to))
		},
	}

	return &BreakerRepository{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State reports the breaker state.
func (r *BreakerRepository) State() gobreaker.State {
	return r.breaker.State()
}

// Get reads through the breaker.
func (r *BreakerRepository) Get(ctx context.Context, name string) (*domain.FlagDefinition, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.next.Get(ctx, name)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return result.(*domain.FlagDefinition), nil
}

// Upsert writes through the breaker.
func (r *BreakerRepository) Upsert(ctx context.Context, flag *domain.FlagDefinition) (*domain.FlagDefinition, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.next.Upsert(ctx, flag)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return result.(*domain.FlagDefinition), nil
}

// Delete deletes through the breaker.
func (r *BreakerRepository) Delete(ctx context.Context, name string) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.next.Delete(ctx, name)
	})
	return mapBreakerError(err)
}

// ListAll lists through the breaker.
func (r *BreakerRepository) ListAll(ctx context.Context) ([]*domain.FlagDefinition, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.next.ListAll(ctx)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return result.([]*domain.FlagDefinition), nil
}

func mapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

var _ domain.Repository = (*BreakerRepository)(nil)
