package database

import "context"

// Result represents the result of an Exec operation.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs statements that return no rows. Migrations only need this much.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
}

// Connection is an open handle on the flag store.
type Connection interface {
	Executor
	// Ping verifies the connection is still alive.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
	// Driver returns the backend behind this connection.
	Driver() Driver
}
