package flag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/adapter/cli"
	"github.com/felixgeelhaar/flagwise/internal/app"
	"github.com/felixgeelhaar/flagwise/internal/flags/application"
	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/config"
)

// setupLocalModeTestApp wires the CLI to a temp SQLite store.
func setupLocalModeTestApp(t *testing.T) *app.Container {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                  "test",
		InstanceID:              "cli-test",
		SQLitePath:              filepath.Join(t.TempDir(), "flags.db"),
		DecisionTTL:             time.Minute,
		StoreReadTimeout:        time.Second,
		BreakerFailures:         5,
		BreakerOpenTimeout:      time.Second,
		BreakerHalfOpenRequests: 1,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	cli.SetApp(&cli.App{
		Evaluator:     container.Evaluator,
		Administrator: container.Administrator,
		Migrate:       container.Migrate,
	})
	t.Cleanup(func() { cli.SetApp(nil) })
	return container
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		sub.Flags().VisitAll(reset)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(Cmd)

	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(io.Discard)
	Cmd.SetArgs(args)
	err := Cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFlagCommands_SetAndCheck(t *testing.T) {
	setupLocalModeTestApp(t)

	out, err := run(t, "set", "beta-search", "--enabled", "--allow", "u1", "-d", "search v2")
	require.NoError(t, err)
	assert.Contains(t, out, "beta-search")
	assert.Contains(t, out, "enabled:    true")
	assert.Contains(t, out, "allow-list: u1")

	out, err = run(t, "check", "beta-search", "--subject", "u1")
	require.NoError(t, err)
	assert.Equal(t, "beta-search: enabled (allow_list)\n", out)

	out, err = run(t, "check", "beta-search", "--subject", "u2")
	require.NoError(t, err)
	assert.Equal(t, "beta-search: disabled (rollout)\n", out)

	// Only the percentage changes; the allow-list and kill-switch are kept.
	_, err = run(t, "set", "beta-search", "--percentage", "100")
	require.NoError(t, err)

	out, err = run(t, "check", "beta-search", "--subject", "u2", "--json")
	require.NoError(t, err)
	var d application.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.True(t, d.Enabled)

	out, err = run(t, "get", "beta-search", "--json")
	require.NoError(t, err)
	var def domain.FlagDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.True(t, def.Enabled)
	assert.Equal(t, 100, def.Percentage)
	assert.Equal(t, []string{"u1"}, def.SubjectAllowList)
	assert.Equal(t, "search v2", def.Description)
}

func TestFlagCommands_ListAndDelete(t *testing.T) {
	setupLocalModeTestApp(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No flags defined.")

	for _, name := range []string{"b", "a"} {
		_, err := run(t, "set", name, "--enabled")
		require.NoError(t, err)
	}

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	var defs []domain.FlagDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)

	out, err = run(t, "delete", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "Flag deleted: a")

	_, err = run(t, "get", "a")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "delete", "a")
	assert.NoError(t, err)
}

func TestFlagCommands_Errors(t *testing.T) {
	cli.SetApp(nil)
	_, err := run(t, "list")
	assert.ErrorContains(t, err, "not initialized")

	setupLocalModeTestApp(t)
	_, err = run(t, "set", "has space", "--enabled")
	assert.ErrorIs(t, err, domain.ErrInvalidFlagName)

	_, err = run(t, "set")
	assert.Error(t, err)
}
