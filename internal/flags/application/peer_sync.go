package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// PeerSync applies invalidations broadcast by other instances.
type PeerSync struct {
	invalidator CacheInvalidator
	instanceID  string
	logger      *slog.Logger
	metrics     observability.Metrics
}

// NewPeerSync creates a handler for peer invalidations.
func NewPeerSync(invalidator CacheInvalidator, instanceID string, logger *slog.Logger, metrics observability.Metrics) *PeerSync {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &PeerSync{
		invalidator: invalidator,
		instanceID:  instanceID,
		logger:      observability.WithComponent(logger, "peer-sync"),
		metrics:     metrics,
	}
}

// Handle drops cached decisions for the flag named in event. Events this
// instance published itself were already applied locally and are skipped.
func (p *PeerSync) Handle(ctx context.Context, event domain.FlagInvalidated) error {
	if event.Origin == p.instanceID {
		return nil
	}
	if err := p.invalidator.Invalidate(ctx, event.Name); err != nil {
		return err
	}
	p.metrics.Counter(observability.MetricInvalidationsConsumed, 1)
	p.logger.DebugContext(ctx, "applied peer invalidation",
		observability.FlagKey, event.Name,
		"origin", event.Origin,
		"action", string(event.Action),
	)
	return nil
}
