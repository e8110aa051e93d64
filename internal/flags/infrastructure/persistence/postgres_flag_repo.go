package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
)

// PostgresFlagRepository implements domain.Repository with PostgreSQL.
type PostgresFlagRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFlagRepository creates a new repository.
func NewPostgresFlagRepository(pool *pgxpool.Pool) *PostgresFlagRepository {
	return &PostgresFlagRepository{pool: pool}
}

// Get returns the definition or domain.ErrFlagNotFound.
func (r *PostgresFlagRepository) Get(ctx context.Context, name string) (*domain.FlagDefinition, error) {
	query := `
		SELECT name, enabled, percentage, subject_allow_list, description, updated_at
		FROM flag_definitions
		WHERE name = $1
	`
	flag, err := scanPostgresFlag(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrFlagNotFound
		}
		return nil, fmt.Errorf("failed to get flag %q: %w", name, err)
	}
	return flag, nil
}

// Upsert creates or replaces the definition; the stored timestamp comes from the server.
func (r *PostgresFlagRepository) Upsert(ctx context.Context, flag *domain.FlagDefinition) (*domain.FlagDefinition, error) {
	query := `
		INSERT INTO flag_definitions (name, enabled, percentage, subject_allow_list, description, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (name) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			percentage = EXCLUDED.percentage,
			subject_allow_list = EXCLUDED.subject_allow_list,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING name, enabled, percentage, subject_allow_list, description, updated_at
	`
	stored, err := scanPostgresFlag(r.pool.QueryRow(ctx, query,
		flag.Name, flag.Enabled, flag.Percentage, pq.Array(flag.SubjectAllowList), flag.Description,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert flag %q: %w", flag.Name, err)
	}
	return stored, nil
}

// Delete removes the definition. Missing flags are ignored.
func (r *PostgresFlagRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM flag_definitions WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete flag %q: %w", name, err)
	}
	return nil
}

// ListAll returns every definition ordered by name, compared bytewise.
func (r *PostgresFlagRepository) ListAll(ctx context.Context) ([]*domain.FlagDefinition, error) {
	query := `
		SELECT name, enabled, percentage, subject_allow_list, description, updated_at
		FROM flag_definitions
		ORDER BY name COLLATE "C"
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	flags := make([]*domain.FlagDefinition, 0)
	for rows.Next() {
		flag, err := scanPostgresFlag(rows)
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

func scanPostgresFlag(row pgx.Row) (*domain.FlagDefinition, error) {
	var (
		flag      domain.FlagDefinition
		allowList []string
	)
	err := row.Scan(
		&flag.Name, &flag.Enabled, &flag.Percentage, pq.Array(&allowList),
		&flag.Description, &flag.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	flag.SubjectAllowList = allowList
	if flag.SubjectAllowList == nil {
		flag.SubjectAllowList = []string{}
	}
	flag.UpdatedAt = flag.UpdatedAt.UTC()
	return &flag, nil
}

var _ domain.Repository = (*PostgresFlagRepository)(nil)
