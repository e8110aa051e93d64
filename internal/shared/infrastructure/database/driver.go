package database

import "strings"

// Driver identifies the flag store backend.
type Driver string

const (
	// DriverPostgres is the shared store used by multi-instance deployments.
	DriverPostgres Driver = "postgres"
	// DriverSQLite is the embedded single-node store.
	DriverSQLite Driver = "sqlite"
)

// String returns the string representation of the driver.
func (d Driver) String() string {
	return string(d)
}

// DetectDriver picks a backend from a connection string.
// An empty URL selects SQLite; an unrecognized scheme yields an empty Driver.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite
	default:
		return ""
	}
}

// SQLitePathFromURL strips URL scheme prefixes from a SQLite location.
func SQLitePathFromURL(url string) string {
	for _, prefix := range []string{"sqlite://", "file:"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

// IsValid returns true if the driver is a known type.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverSQLite:
		return true
	default:
		return false
	}
}
