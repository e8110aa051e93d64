package domain

import "context"

// Repository is the durable source of truth for flag definitions.
type Repository interface {
	// Get returns the definition or ErrFlagNotFound.
	Get(ctx context.Context, name string) (*FlagDefinition, error)

	// Upsert creates or overwrites the definition and returns what was stored.
	Upsert(ctx context.Context, flag *FlagDefinition) (*FlagDefinition, error)

	// Delete removes the definition. Deleting an absent flag is not an error.
	Delete(ctx context.Context, name string) error

	// ListAll returns every definition ordered by name.
	ListAll(ctx context.Context) ([]*FlagDefinition, error)
}
