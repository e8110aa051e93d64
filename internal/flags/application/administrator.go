package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// invalidationTimeout bounds the cache and broker work that follows a store write.
const invalidationTimeout = 2 * time.Second

// CacheInvalidator drops cached decisions for a flag. Evaluator implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, flagName string) error
}

// InvalidationPublisher tells peer instances that a flag changed.
type InvalidationPublisher interface {
	Publish(ctx context.Context, event domain.FlagInvalidated) error
}

// Administrator writes flag definitions and keeps caches coherent with them.
type Administrator struct {
	repo        domain.Repository
	invalidator CacheInvalidator
	publisher   InvalidationPublisher
	instanceID  string
	logger      *slog.Logger
	metrics     observability.Metrics
}

// NewAdministrator creates an administrator. publisher may be nil when there are no peers.
func NewAdministrator(
	repo domain.Repository,
	invalidator CacheInvalidator,
	publisher InvalidationPublisher,
	instanceID string,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Administrator {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Administrator{
		repo:        repo,
		invalidator: invalidator,
		publisher:   publisher,
		instanceID:  instanceID,
		logger:      observability.WithComponent(logger, "administrator"),
		metrics:     metrics,
	}
}

// Upsert creates the flag or merges opts into the stored definition, then
// invalidates cached decisions. Fields opts leaves unset keep their stored value,
// or the defaults of NewFlagDefinition on create.
func (a *Administrator) Upsert(ctx context.Context, flagName string, opts domain.UpsertOptions) (flag *domain.FlagDefinition, err error) {
	timer := observability.StartTimer("flags.upsert").WithLogger(a.logger).WithMetrics(a.metrics)
	defer func() { timer.StopWithError(err) }()

	if err := domain.ValidateName(flagName); err != nil {
		return nil, err
	}

	base, err := a.repo.Get(ctx, flagName)
	switch {
	case errors.Is(err, domain.ErrFlagNotFound):
		base = domain.NewFlagDefinition(flagName)
	case err != nil:
		return nil, fmt.Errorf("failed to load flag %q: %w", flagName, err)
	}

	stored, err := a.repo.Upsert(ctx, opts.Apply(base))
	if err != nil {
		return nil, fmt.Errorf("failed to store flag %q: %w", flagName, err)
	}

	a.logger.InfoContext(ctx, "flag upserted",
		observability.FlagKey, stored.Name,
		"enabled", stored.Enabled,
		"percentage", stored.Percentage,
		"allow_list_size", len(stored.SubjectAllowList),
	)
	a.afterWrite(ctx, flagName, domain.FlagActionUpserted)
	return stored, nil
}

// Delete removes the flag. Deleting a flag that does not exist succeeds.
func (a *Administrator) Delete(ctx context.Context, flagName string) (err error) {
	timer := observability.StartTimer("flags.delete").WithLogger(a.logger).WithMetrics(a.metrics)
	defer func() { timer.StopWithError(err) }()

	if err := domain.ValidateName(flagName); err != nil {
		return err
	}
	if err := a.repo.Delete(ctx, flagName); err != nil {
		return fmt.Errorf("failed to delete flag %q: %w", flagName, err)
	}

	a.logger.InfoContext(ctx, "flag deleted", observability.FlagKey, flagName)
	a.afterWrite(ctx, flagName, domain.FlagActionDeleted)
	return nil
}

// Get returns one definition straight from the store.
func (a *Administrator) Get(ctx context.Context, flagName string) (*domain.FlagDefinition, error) {
	flag, err := a.repo.Get(ctx, flagName)
	if err != nil {
		if errors.Is(err, domain.ErrFlagNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get flag %q: %w", flagName, err)
	}
	return flag, nil
}

// ListAll returns every definition ordered by name, bypassing the cache.
func (a *Administrator) ListAll(ctx context.Context) ([]*domain.FlagDefinition, error) {
	flags, err := a.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	return flags, nil
}

// afterWrite invalidates locally and notifies peers. The store write already
// succeeded, so failures here are logged: cached decisions age out within their TTL.
func (a *Administrator) afterWrite(ctx context.Context, flagName string, action domain.FlagAction) {
	a.metrics.Counter(observability.MetricAdminWrites, 1, observability.T("action", string(action)))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidationTimeout)
	defer cancel()

	if err := a.invalidator.Invalidate(ctx, flagName); err != nil {
		a.logger.WarnContext(ctx, "failed to invalidate cached decisions",
			observability.FlagKey, flagName,
			observability.ErrorKey, err,
		)
	}

	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, domain.NewFlagInvalidated(flagName, action, a.instanceID)); err != nil {
		a.logger.WarnContext(ctx, "failed to broadcast invalidation",
			observability.FlagKey, flagName,
			observability.ErrorKey, err,
		)
		return
	}
	a.metrics.Counter(observability.MetricInvalidationsPublished, 1)
}
