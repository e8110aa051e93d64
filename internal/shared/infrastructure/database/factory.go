package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds database configuration.
type Config struct {
	// URL is the PostgreSQL connection string, or a SQLite location.
	// Empty selects SQLite at SQLitePath.
	URL string

	// SQLitePath is the SQLite database file. Defaults to ~/.flagwise/flags.db.
	SQLitePath string

	// MaxConns is the maximum number of pooled connections (PostgreSQL only).
	MaxConns int
}

// Driver resolves which backend the configuration selects.
func (c Config) Driver() Driver {
	return DetectDriver(c.URL)
}

// NewConnection opens a connection to the backend the configuration selects.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	switch driver := cfg.Driver(); driver {
	case DriverPostgres:
		if newPostgresConnection == nil {
			return nil, fmt.Errorf("postgres driver not registered")
		}
		return newPostgresConnection(ctx, cfg)
	case DriverSQLite:
		if newSQLiteConnection == nil {
			return nil, fmt.Errorf("sqlite driver not registered")
		}
		if cfg.URL != "" {
			cfg.SQLitePath = SQLitePathFromURL(cfg.URL)
		}
		return newSQLiteConnection(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database URL %q", cfg.URL)
	}
}

// DefaultSQLitePath returns the default SQLite database path.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".flagwise", "flags.db")
}

// EnsureDirectory creates the parent directory for a file path if it doesn't exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Backend packages register themselves from init so this package stays free of driver imports.
var (
	newPostgresConnection func(ctx context.Context, cfg Config) (Connection, error)
	newSQLiteConnection   func(ctx context.Context, cfg Config) (Connection, error)
)

// RegisterPostgresDriver registers the PostgreSQL connection factory.
func RegisterPostgresDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newPostgresConnection = fn
}

// RegisterSQLiteDriver registers the SQLite connection factory.
func RegisterSQLiteDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newSQLiteConnection = fn
}
