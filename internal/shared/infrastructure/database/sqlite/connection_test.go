package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
)

func TestNewConnection_CreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "flags.db")

	conn, err := NewConnection(ctx, database.Config{SQLitePath: path})
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.Ping(ctx))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
	assert.FileExists(t, path)
}

func TestConnection_Exec(t *testing.T) {
	ctx := context.Background()

	conn, err := NewConnection(ctx, database.Config{SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(ctx, `CREATE TABLE t (name TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	result, err := conn.Exec(ctx, `INSERT INTO t (name) VALUES (?), (?)`, "a", "b")
	require.NoError(t, err)
	n, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var count int
	require.NoError(t, conn.(*Connection).DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestNewConnection_ThroughFactory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flags.db")

	conn, err := database.NewConnection(ctx, database.Config{URL: "sqlite://" + path})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, database.DriverSQLite, conn.Driver())
	assert.FileExists(t, path)
}
