// Package persistence stores flag definitions in SQLite or PostgreSQL.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
)

// SQLiteFlagRepository implements domain.Repository with SQLite.
// The allow-list is kept as a JSON array in a TEXT column.
type SQLiteFlagRepository struct {
	db *sql.DB
}

// NewSQLiteFlagRepository creates a new repository.
func NewSQLiteFlagRepository(db *sql.DB) *SQLiteFlagRepository {
	return &SQLiteFlagRepository{db: db}
}

// Get returns the definition or domain.ErrFlagNotFound.
func (r *SQLiteFlagRepository) Get(ctx context.Context, name string) (*domain.FlagDefinition, error) {
	query := `
		SELECT name, enabled, percentage, subject_allow_list, description, updated_at
		FROM flag_definitions
		WHERE name = ?
	`
	flag, err := scanSQLiteFlag(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrFlagNotFound
		}
		return nil, fmt.Errorf("failed to get flag %q: %w", name, err)
	}
	return flag, nil
}

// Upsert creates or replaces the definition.
func (r *SQLiteFlagRepository) Upsert(ctx context.Context, flag *domain.FlagDefinition) (*domain.FlagDefinition, error) {
	stored := flag.Clone()
	stored.UpdatedAt = time.Now().UTC()

	allowList, err := json.Marshal(stored.SubjectAllowList)
	if err != nil {
		return nil, fmt.Errorf("failed to encode allow-list: %w", err)
	}

	query := `
		INSERT INTO flag_definitions (name, enabled, percentage, subject_allow_list, description, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			enabled = excluded.enabled,
			percentage = excluded.percentage,
			subject_allow_list = excluded.subject_allow_list,
			description = excluded.description,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		stored.Name, boolToInt(stored.Enabled), stored.Percentage, string(allowList),
		stored.Description, stored.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert flag %q: %w", stored.Name, err)
	}
	return stored, nil
}

// Delete removes the definition. Missing flags are ignored.
func (r *SQLiteFlagRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM flag_definitions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete flag %q: %w", name, err)
	}
	return nil
}

// ListAll returns every definition ordered by name.
func (r *SQLiteFlagRepository) ListAll(ctx context.Context) ([]*domain.FlagDefinition, error) {
	query := `
		SELECT name, enabled, percentage, subject_allow_list, description, updated_at
		FROM flag_definitions
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	flags := make([]*domain.FlagDefinition, 0)
	for rows.Next() {
		flag, err := scanSQLiteFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	return flags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteFlag(row rowScanner) (*domain.FlagDefinition, error) {
	var (
		flag      domain.FlagDefinition
		enabled   int
		allowList string
		updatedAt string
	)
	if err := row.Scan(&flag.Name, &enabled, &flag.Percentage, &allowList, &flag.Description, &updatedAt); err != nil {
		return nil, err
	}

	flag.Enabled = enabled != 0
	flag.SubjectAllowList = []string{}
	if allowList != "" {
		if err := json.Unmarshal([]byte(allowList), &flag.SubjectAllowList); err != nil {
			return nil, fmt.Errorf("corrupt allow-list for %q: %w", flag.Name, err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		flag.UpdatedAt = t
	}
	return &flag, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.Repository = (*SQLiteFlagRepository)(nil)
