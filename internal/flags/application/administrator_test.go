package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/internal/flags/application"
	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

func TestAdministrator_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates with defaults for absent fields", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})

		flag := h.upsert(t, "beta", domain.UpsertOptions{}.WithDescription("new search"))

		assert.Equal(t, "beta", flag.Name)
		assert.False(t, flag.Enabled)
		assert.Equal(t, 0, flag.Percentage)
		assert.Equal(t, []string{}, flag.SubjectAllowList)
		assert.Equal(t, "new search", flag.Description)
		assert.False(t, flag.UpdatedAt.IsZero())
	})

	t.Run("merges into the stored definition", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		h.upsert(t, "beta", domain.UpsertOptions{}.WithEnabled(true).WithAllowList("u1").WithDescription("d"))

		flag := h.upsert(t, "beta", domain.UpsertOptions{}.WithPercentage(40))

		assert.True(t, flag.Enabled)
		assert.Equal(t, 40, flag.Percentage)
		assert.Equal(t, []string{"u1"}, flag.SubjectAllowList)
		assert.Equal(t, "d", flag.Description)
	})

	t.Run("clamps percentage", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		assert.Equal(t, 100, h.upsert(t, "beta", domain.UpsertOptions{}.WithPercentage(250)).Percentage)
		assert.Equal(t, 0, h.upsert(t, "beta", domain.UpsertOptions{}.WithPercentage(-1)).Percentage)
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		for _, name := range []string{"", "has space", strings.Repeat("x", domain.MaxNameLength+1)} {
			_, err := h.admin.Upsert(ctx, name, domain.UpsertOptions{})
			assert.ErrorIs(t, err, domain.ErrInvalidFlagName, name)
		}
		assert.Empty(t, h.pub.published())
	})

	t.Run("surfaces store errors", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		h.repo.failWith(errStoreDown)

		_, err := h.admin.Upsert(ctx, "beta", domain.UpsertOptions{}.WithEnabled(true))
		assert.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, h.pub.published())
		assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricOperationErrors,
			observability.T("operation", "flags.upsert")))
	})

	t.Run("broadcasts with own origin", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		h.upsert(t, "beta", domain.UpsertOptions{}.WithEnabled(true))

		events := h.pub.published()
		require.Len(t, events, 1)
		assert.Equal(t, "beta", events[0].Name)
		assert.Equal(t, domain.FlagActionUpserted, events[0].Action)
		assert.Equal(t, "node-a", events[0].Origin)
		assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricAdminWrites,
			observability.T("action", "upserted")))
	})

	t.Run("broadcast failure does not fail the write", func(t *testing.T) {
		h := newHarness(t, nil, application.EvaluatorConfig{})
		h.pub.err = errors.New("broker down")

		flag, err := h.admin.Upsert(ctx, "beta", domain.UpsertOptions{}.WithEnabled(true))
		require.NoError(t, err)
		assert.True(t, flag.Enabled)
		assert.True(t, h.eval.IsEnabled(ctx, "beta", ""))
	})

	t.Run("works without a publisher", func(t *testing.T) {
		repo := newMockRepository()
		eval := application.NewEvaluator(repo, newExactKeyCache(), application.EvaluatorConfig{}, testLogger(), nil)
		admin := application.NewAdministrator(repo, eval, nil, "solo", testLogger(), nil)

		_, err := admin.Upsert(ctx, "beta", domain.UpsertOptions{}.WithEnabled(true))
		require.NoError(t, err)
		require.NoError(t, admin.Delete(ctx, "beta"))
	})
}

func TestAdministrator_Delete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, application.EvaluatorConfig{})
	h.upsert(t, "beta", domain.UpsertOptions{}.WithEnabled(true))
	require.True(t, h.eval.IsEnabled(ctx, "beta", "u1"))

	require.NoError(t, h.admin.Delete(ctx, "beta"))
	assert.False(t, h.eval.IsEnabled(ctx, "beta", "u1"), "deleted flag must not be served from cache")

	require.NoError(t, h.admin.Delete(ctx, "beta"), "delete is idempotent")
	require.NoError(t, h.admin.Delete(ctx, "never-existed"))

	events := h.pub.published()
	require.Len(t, events, 4)
	assert.Equal(t, domain.FlagActionDeleted, events[3].Action)

	assert.ErrorIs(t, h.admin.Delete(ctx, ""), domain.ErrInvalidFlagName)

	h.repo.failWith(errStoreDown)
	assert.ErrorIs(t, h.admin.Delete(ctx, "beta"), errStoreDown)
}

func TestAdministrator_ListAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, application.EvaluatorConfig{})

	empty, err := h.admin.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"b", "a", "c"} {
		h.upsert(t, name, domain.UpsertOptions{})
	}

	flags, err := h.admin.ListAll(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	h.repo.failWith(errStoreDown)
	_, err = h.admin.ListAll(ctx)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestAdministrator_Get(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, application.EvaluatorConfig{})
	h.upsert(t, "beta", domain.UpsertOptions{}.WithPercentage(10))

	flag, err := h.admin.Get(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, 10, flag.Percentage)

	_, err = h.admin.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
}

func TestPeerSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, application.EvaluatorConfig{})
	h.upsert(t, "beta", domain.UpsertOptions{}.WithEnabled(true))
	require.True(t, h.eval.IsEnabled(ctx, "beta", "u1"))

	// Another instance disables the flag in the shared store.
	_, err := h.repo.Upsert(ctx, &domain.FlagDefinition{Name: "beta", SubjectAllowList: []string{}})
	require.NoError(t, err)

	sync := application.NewPeerSync(h.eval, "node-a", testLogger(), h.metrics)

	require.NoError(t, sync.Handle(ctx, domain.NewFlagInvalidated("beta", domain.FlagActionUpserted, "node-a")))
	assert.True(t, h.eval.IsEnabled(ctx, "beta", "u1"), "own events are skipped")

	require.NoError(t, sync.Handle(ctx, domain.NewFlagInvalidated("beta", domain.FlagActionUpserted, "node-b")))
	assert.False(t, h.eval.IsEnabled(ctx, "beta", "u1"))
	assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricInvalidationsConsumed))
}
