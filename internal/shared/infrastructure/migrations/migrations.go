// Package migrations holds the embedded flag store schema.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var schemaFS embed.FS

// Files lists the .up.sql migrations for a driver in apply order.
func Files(driver database.Driver) ([]string, error) {
	if !driver.IsValid() {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	entries, err := fs.ReadDir(schemaFS, driver.String())
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)
	return upFiles, nil
}

// Run applies every migration for the connection's driver. Statements are
// idempotent, so running it on every start is safe.
func Run(ctx context.Context, conn database.Connection) ([]string, error) {
	driver := conn.Driver()
	files, err := Files(driver)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		migration, err := schemaFS.ReadFile(driver.String() + "/" + file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if _, err := conn.Exec(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}
	return files, nil
}
