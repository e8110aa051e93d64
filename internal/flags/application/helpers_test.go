package application_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

var errStoreDown = errors.New("connection refused")

// mockRepository is an in-memory flag store with failure injection.
type mockRepository struct {
	mu    sync.Mutex
	flags map[string]*domain.FlagDefinition
	err   error
	// block, when set, holds every Get until it is closed or ctx ends.
	block chan struct{}
	gets  atomic.Int32
}

func newMockRepository() *mockRepository {
	return &mockRepository{flags: make(map[string]*domain.FlagDefinition)}
}

func (r *mockRepository) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *mockRepository) Get(ctx context.Context, name string) (*domain.FlagDefinition, error) {
	r.gets.Add(1)
	r.mu.Lock()
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	f, ok := r.flags[name]
	if !ok {
		return nil, domain.ErrFlagNotFound
	}
	return f.Clone(), nil
}

func (r *mockRepository) Upsert(_ context.Context, flag *domain.FlagDefinition) (*domain.FlagDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stored := flag.Clone()
	stored.UpdatedAt = time.Now().UTC()
	r.flags[stored.Name] = stored
	return stored.Clone(), nil
}

func (r *mockRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.flags, name)
	return nil
}

func (r *mockRepository) ListAll(context.Context) ([]*domain.FlagDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*domain.FlagDefinition, 0, len(r.flags))
	for _, f := range r.flags {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// exactKeyCache supports only exact-key deletion, so invalidation falls back to
// dropping the global entry.
type exactKeyCache struct {
	mu      sync.Mutex
	entries map[string]exactEntry
	getErr  error
	setErr  error
}

type exactEntry struct {
	value   bool
	expires time.Time
}

func newExactKeyCache() *exactKeyCache {
	return &exactKeyCache{entries: make(map[string]exactEntry)}
}

func (c *exactKeyCache) Get(_ context.Context, key string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, false, c.getErr
	}
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return false, false, nil
	}
	return e.value, true, nil
}

func (c *exactKeyCache) Set(_ context.Context, key string, v bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = exactEntry{value: v, expires: time.Now().Add(ttl)}
	return nil
}

func (c *exactKeyCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *exactKeyCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// recordingPublisher captures broadcast invalidations.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.FlagInvalidated
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.FlagInvalidated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) published() []domain.FlagInvalidated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.FlagInvalidated(nil), p.events...)
}
