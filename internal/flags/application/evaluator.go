// Package application holds the flag evaluation and administration use cases.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// DefaultStoreReadTimeout bounds a single flag store read on the decision path.
const DefaultStoreReadTimeout = 50 * time.Millisecond

// generationStripes shards invalidation generations; a collision only skips a cache write.
const generationStripes = 256

// Reason explains how a decision was reached.
type Reason string

const (
	ReasonCacheHit  Reason = "cache_hit"
	ReasonNotFound  Reason = "not_found"
	ReasonDisabled  Reason = "disabled"
	ReasonGlobal    Reason = "global"
	ReasonAllowList Reason = "allow_list"
	ReasonRollout   Reason = "rollout"
	ReasonError     Reason = "error"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Enabled bool   `json:"enabled"`
	Reason  Reason `json:"reason"`
	Cached  bool   `json:"cached"`
}

// EvaluatorConfig tunes the decision path.
type EvaluatorConfig struct {
	DecisionTTL      time.Duration
	StoreReadTimeout time.Duration
}

// DefaultEvaluatorConfig returns the production defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		DecisionTTL:      domain.DefaultDecisionTTL,
		StoreReadTimeout: DefaultStoreReadTimeout,
	}
}

// Evaluator answers "is this flag on for this subject" from the cache, falling
// back to the flag store. It never returns an error: anything uncertain is false.
type Evaluator struct {
	repo    domain.Repository
	cache   domain.DecisionCache
	cfg     EvaluatorConfig
	logger  *slog.Logger
	metrics observability.Metrics

	loads       singleflight.Group
	generations [generationStripes]atomic.Uint64
}

// NewEvaluator creates an evaluator. Zero config fields take defaults.
func NewEvaluator(repo domain.Repository, cache domain.DecisionCache, cfg EvaluatorConfig, logger *slog.Logger, metrics observability.Metrics) *Evaluator {
	defaults := DefaultEvaluatorConfig()
	if cfg.DecisionTTL <= 0 {
		cfg.DecisionTTL = defaults.DecisionTTL
	}
	if cfg.StoreReadTimeout <= 0 {
		cfg.StoreReadTimeout = defaults.StoreReadTimeout
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Evaluator{
		repo:    repo,
		cache:   cache,
		cfg:     cfg,
		logger:  observability.WithComponent(logger, "evaluator"),
		metrics: metrics,
	}
}

// IsEnabled reports whether the flag is on for subjectID. An empty subjectID
// asks for the global decision.
func (e *Evaluator) IsEnabled(ctx context.Context, flagName, subjectID string) bool {
	return e.Evaluate(ctx, flagName, subjectID).Enabled
}

// Evaluate is IsEnabled with the reason attached.
func (e *Evaluator) Evaluate(ctx context.Context, flagName, subjectID string) Decision {
	d := e.evaluate(ctx, flagName, subjectID)
	e.metrics.Counter(observability.MetricDecisionsTotal, 1, observability.T("reason", string(d.Reason)))
	return d
}

func (e *Evaluator) evaluate(ctx context.Context, flagName, subjectID string) Decision {
	decision := Decision{Name: flagName, Subject: subjectID}
	key := domain.DecisionKey(flagName, subjectID)

	cached, found, err := e.cache.Get(ctx, key)
	if err != nil {
		return e.failClosed(ctx, decision, "cache", err)
	}
	if found {
		e.metrics.Counter(observability.MetricCacheHits, 1)
		decision.Enabled = cached
		decision.Reason = ReasonCacheHit
		decision.Cached = true
		return decision
	}
	e.metrics.Counter(observability.MetricCacheMisses, 1)

	gen := e.generation(flagName)
	flag, err := e.load(ctx, flagName)
	switch {
	case errors.Is(err, domain.ErrFlagNotFound):
		flag = nil
	case err != nil:
		return e.failClosed(ctx, decision, "store", err)
	}

	decision.Enabled, decision.Reason = decide(flag, subjectID)

	// A write that landed while we were reading would be shadowed by this entry.
	if e.generation(flagName) != gen {
		return decision
	}
	if err := e.cache.Set(ctx, key, decision.Enabled, e.cfg.DecisionTTL); err != nil {
		e.logger.WarnContext(ctx, "failed to cache decision",
			observability.FlagKey, flagName,
			observability.ErrorKey, err,
		)
		e.metrics.Counter(observability.MetricDecisionErrors, 1, observability.T("stage", "cache_write"))
	}
	return decision
}

// decide applies the evaluation rules to a definition; nil means the flag does not exist.
func decide(flag *domain.FlagDefinition, subjectID string) (bool, Reason) {
	switch {
	case flag == nil:
		return false, ReasonNotFound
	case !flag.Enabled:
		return false, ReasonDisabled
	case subjectID == "":
		return true, ReasonGlobal
	case flag.Allows(subjectID):
		return true, ReasonAllowList
	default:
		return domain.InRollout(subjectID, flag.Name, flag.Percentage), ReasonRollout
	}
}

// load reads a definition with at most one store round trip in flight per flag.
// The shared read is detached from any single caller's cancellation and bounded
// by the store read timeout; each caller still stops waiting when its own ctx ends.
func (e *Evaluator) load(ctx context.Context, flagName string) (*domain.FlagDefinition, error) {
	ch := e.loads.DoChan(flagName, func() (any, error) {
		e.metrics.Counter(observability.MetricStoreReads, 1)
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.StoreReadTimeout)
		defer cancel()
		return e.repo.Get(readCtx, flagName)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		flag, _ := res.Val.(*domain.FlagDefinition)
		return flag, nil
	}
}

func (e *Evaluator) failClosed(ctx context.Context, d Decision, stage string, err error) Decision {
	e.logger.WarnContext(ctx, "flag evaluation failed closed",
		observability.FlagKey, d.Name,
		"stage", stage,
		observability.ErrorKey, err,
	)
	e.metrics.Counter(observability.MetricDecisionErrors, 1, observability.T("stage", stage))
	d.Enabled = false
	d.Reason = ReasonError
	return d
}

// Invalidate drops cached decisions for a flag and stops in-flight reads from
// caching what they saw before the change.
func (e *Evaluator) Invalidate(ctx context.Context, flagName string) error {
	e.stripe(flagName).Add(1)
	e.loads.Forget(flagName)
	return domain.Invalidate(ctx, e.cache, flagName)
}

func (e *Evaluator) generation(flagName string) uint64 {
	return e.stripe(flagName).Load()
}

func (e *Evaluator) stripe(flagName string) *atomic.Uint64 {
	return &e.generations[xxhash.Sum64String(flagName)%generationStripes]
}
