package messaging

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

// NoopBroadcaster is used when no broker is configured; each instance relies on
// its own invalidation and on decision TTLs.
type NoopBroadcaster struct {
	logger *slog.Logger
}

// NewNoopBroadcaster creates a broadcaster that only logs.
func NewNoopBroadcaster(logger *slog.Logger) *NoopBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopBroadcaster{logger: logger}
}

// Publish logs the event.
func (b *NoopBroadcaster) Publish(_ context.Context, event domain.FlagInvalidated) error {
	b.logger.Debug("noop invalidation", "flag", event.Name, "action", string(event.Action))
	return nil
}

// Run blocks until ctx is done.
func (b *NoopBroadcaster) Run(ctx context.Context, _ InvalidationHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close is a no-op.
func (b *NoopBroadcaster) Close() error {
	return nil
}
