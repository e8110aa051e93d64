package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

func TestParseUpsertOptions_Coercion(t *testing.T) {
	t.Run("clamps percentage", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"percentage": 150}`))
		require.NoError(t, err)
		assert.Equal(t, 100, *opts.Percentage)

		opts, err = ParseUpsertOptions(decode(t, `{"percentage": -3}`))
		require.NoError(t, err)
		assert.Equal(t, 0, *opts.Percentage)
	})

	t.Run("floors fractional percentage", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"percentage": 33.9}`))
		require.NoError(t, err)
		assert.Equal(t, 33, *opts.Percentage)
	})

	t.Run("accepts numeric string", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"percentage": "25"}`))
		require.NoError(t, err)
		assert.Equal(t, 25, *opts.Percentage)
	})

	t.Run("rejects non-numeric percentage", func(t *testing.T) {
		_, err := ParseUpsertOptions(decode(t, `{"percentage": "lots"}`))
		assert.ErrorIs(t, err, ErrInvalidPercentage)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = ParseUpsertOptions(decode(t, `{"percentage": true}`))
		assert.ErrorIs(t, err, ErrInvalidPercentage)
	})

	t.Run("rejects non-finite percentage", func(t *testing.T) {
		for _, doc := range []string{
			`{"percentage": "Inf"}`,
			`{"percentage": "+Inf"}`,
			`{"percentage": "-Infinity"}`,
			`{"percentage": "NaN"}`,
		} {
			_, err := ParseUpsertOptions(decode(t, doc))
			assert.ErrorIs(t, err, ErrInvalidPercentage, doc)
			assert.ErrorIs(t, err, ErrValidation, doc)
		}

		_, err := ParseUpsertOptions(map[string]any{"percentage": math.Inf(1)})
		assert.ErrorIs(t, err, ErrInvalidPercentage)
	})

	t.Run("boolean-coerces enabled", func(t *testing.T) {
		cases := map[string]bool{
			`{"enabled": true}`:  true,
			`{"enabled": false}`: false,
			`{"enabled": 1}`:     true,
			`{"enabled": 0}`:     false,
			`{"enabled": "yes"}`: true,
			`{"enabled": ""}`:    false,
			`{"enabled": null}`:  false,
			`{"enabled": [1]}`:   true,
			`{"enabled": {}}`:    true,
		}
		for doc, want := range cases {
			opts, err := ParseUpsertOptions(decode(t, doc))
			require.NoError(t, err, doc)
			require.NotNil(t, opts.Enabled, doc)
			assert.Equal(t, want, *opts.Enabled, doc)
		}
	})

	t.Run("non-list allow-list becomes empty", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"subjectAllowList": "u1"}`))
		require.NoError(t, err)
		assert.True(t, opts.SetAllowList)
		assert.Empty(t, opts.SubjectAllowList)
	})

	t.Run("keeps string members of allow-list", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"subjectAllowList": ["u1", 7, "u2"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, opts.SubjectAllowList)
	})

	t.Run("non-string description becomes empty", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{"description": 12}`))
		require.NoError(t, err)
		require.NotNil(t, opts.Description)
		assert.Equal(t, "", *opts.Description)
	})

	t.Run("absent fields stay unset", func(t *testing.T) {
		opts, err := ParseUpsertOptions(decode(t, `{}`))
		require.NoError(t, err)
		assert.Nil(t, opts.Enabled)
		assert.Nil(t, opts.Percentage)
		assert.Nil(t, opts.Description)
		assert.False(t, opts.SetAllowList)
	})
}

func TestUpsertOptions_Apply(t *testing.T) {
	base := NewFlagDefinition("beta-search")
	base.Enabled = true
	base.SubjectAllowList = []string{"u1"}
	base.Description = "search v2"

	t.Run("keeps unspecified fields", func(t *testing.T) {
		got := UpsertOptions{}.WithPercentage(100).Apply(base)
		assert.True(t, got.Enabled)
		assert.Equal(t, 100, got.Percentage)
		assert.Equal(t, []string{"u1"}, got.SubjectAllowList)
		assert.Equal(t, "search v2", got.Description)
	})

	t.Run("clamps programmatic percentage", func(t *testing.T) {
		got := UpsertOptions{}.WithPercentage(500).Apply(base)
		assert.Equal(t, 100, got.Percentage)
	})

	t.Run("replaces allow-list with normalized copy", func(t *testing.T) {
		got := UpsertOptions{}.WithAllowList("u2", "u2", "").Apply(base)
		assert.Equal(t, []string{"u2"}, got.SubjectAllowList)
	})

	t.Run("does not mutate base", func(t *testing.T) {
		_ = UpsertOptions{}.WithEnabled(false).WithDescription("x").Apply(base)
		assert.True(t, base.Enabled)
		assert.Equal(t, "search v2", base.Description)
	})
}
