package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database/sqlite"
)

func TestFiles(t *testing.T) {
	for _, driver := range []database.Driver{database.DriverSQLite, database.DriverPostgres} {
		files, err := Files(driver)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_flag_definitions.up.sql"}, files, driver)
	}

	_, err := Files("mysql")
	assert.Error(t, err)
}

func TestRun_SQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	applied, err := Run(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, applied, 1)

	_, err = Run(ctx, conn)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO flag_definitions (name, percentage, updated_at) VALUES ('beta', 101, '')`)
	assert.Error(t, err, "percentage check constraint")
}
