// Package app wires Flagwise's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/flagwise/internal/flags/application"
	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	flagcache "github.com/felixgeelhaar/flagwise/internal/flags/infrastructure/cache"
	"github.com/felixgeelhaar/flagwise/internal/flags/infrastructure/messaging"
	"github.com/felixgeelhaar/flagwise/internal/flags/infrastructure/persistence"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/flagwise/pkg/config"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// DecisionCache is a decision cache the container owns and checks.
type DecisionCache interface {
	domain.DecisionCache
	Ping(ctx context.Context) error
	Close() error
}

// Broadcaster publishes local invalidations and consumes peer ones.
type Broadcaster interface {
	application.InvalidationPublisher
	Run(ctx context.Context, handle messaging.InvalidationHandler) error
	Close() error
}

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Flags
	FlagRepo      *persistence.BreakerRepository
	Cache         DecisionCache
	Broadcaster   Broadcaster
	Evaluator     *application.Evaluator
	Administrator *application.Administrator
	PeerSync      *application.PeerSync

	// Observability
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry
}

// NewContainer creates the container. An empty DATABASE_URL selects the local
// SQLite store. SQLite is migrated on open; PostgreSQL is migrated by `flagwise migrate`.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Container, err error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	conn, err := database.NewConnection(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.ResolvedSQLitePath(),
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", c.DBDriver)

	if c.DBDriver == database.DriverSQLite {
		if _, err := c.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	rawRepo, err := NewRepositoryFactory(conn).FlagRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to create flag repository: %w", err)
	}
	c.FlagRepo = persistence.NewBreakerRepository(rawRepo, persistence.BreakerConfig{
		FailureThreshold: convert.IntToUint32AtLeast(cfg.BreakerFailures, 1),
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenRequests: convert.IntToUint32AtLeast(cfg.BreakerHalfOpenRequests, 1),
	}, logger, c.Metrics)

	if c.Cache, err = c.newCache(ctx); err != nil {
		return nil, err
	}
	if c.Broadcaster, err = c.newBroadcaster(); err != nil {
		return nil, err
	}

	c.Evaluator = application.NewEvaluator(c.FlagRepo, c.Cache, application.EvaluatorConfig{
		DecisionTTL:      cfg.DecisionTTL,
		StoreReadTimeout: cfg.StoreReadTimeout,
	}, logger, c.Metrics)
	c.Administrator = application.NewAdministrator(c.FlagRepo, c.Evaluator, c.Broadcaster, cfg.InstanceID, logger, c.Metrics)
	c.PeerSync = application.NewPeerSync(c.Evaluator, cfg.InstanceID, logger, c.Metrics)

	c.Health.Register("store", observability.StoreHealthChecker(conn.Ping))
	c.Health.Register("cache", observability.CacheHealthChecker(c.Cache.Ping))
	if pinger, ok := c.Broadcaster.(interface{ Ping(context.Context) error }); ok {
		c.Health.Register("broker", observability.BrokerHealthChecker(pinger.Ping))
	}

	return c, nil
}

// newCache connects to Redis when configured. Outside production an unreachable
// Redis falls back to the in-process cache.
func (c *Container) newCache(ctx context.Context) (DecisionCache, error) {
	if c.Config.RedisURL != "" {
		redisCache, err := flagcache.NewRedisDecisionCacheFromURL(ctx, c.Config.RedisURL)
		if err == nil {
			c.Logger.Info("using Redis decision cache")
			return redisCache, nil
		}
		if c.Config.IsProduction() {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, using in-process decision cache", "error", err)
	}
	return flagcache.NewMemoryDecisionCache(convert.IntToUint64Clamped(c.Config.CacheCapacity)), nil
}

// newBroadcaster connects to RabbitMQ when configured, otherwise peers are not notified.
func (c *Container) newBroadcaster() (Broadcaster, error) {
	if c.Config.RabbitMQURL != "" {
		b, err := messaging.NewRabbitMQBroadcaster(c.Config.RabbitMQURL, c.Logger)
		if err == nil {
			c.Logger.Info("invalidation broadcast enabled", "exchange", messaging.ExchangeName)
			return b, nil
		}
		if c.Config.IsProduction() {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, invalidations stay local", "error", err)
	}
	return messaging.NewNoopBroadcaster(c.Logger), nil
}

// Migrate applies the embedded schema migrations for the connected driver.
func (c *Container) Migrate(ctx context.Context) ([]string, error) {
	applied, err := migrations.Run(ctx, c.DBConn)
	if err != nil {
		return applied, fmt.Errorf("failed to run migrations: %w", err)
	}
	c.Logger.Debug("migrations applied", "count", len(applied))
	return applied, nil
}

// RunPeerSync consumes peer invalidations until ctx is done.
func (c *Container) RunPeerSync(ctx context.Context) error {
	err := c.Broadcaster.Run(ctx, c.PeerSync.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases all resources held by the container.
func (c *Container) Close() {
	if c.Broadcaster != nil {
		if err := c.Broadcaster.Close(); err != nil {
			c.Logger.Warn("error closing broadcaster", "error", err)
		}
	}

	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Warn("error closing decision cache", "error", err)
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed")
		}
	}
}
