package repository

import (
	"context"

	"github.com/crabcut/shortener/internal/model"
)

// URLRepository is the durable short code -> long URL mapping.
type URLRepository interface {
	// Create persists a mapping. Inserting an already-existing short code is
	// a no-op, not an error.
	Create(ctx context.Context, url *model.URL) error

	// GetLongURL resolves a short code. Returns ErrURLNotFound when the code
	// is unknown; other errors indicate storage failure.
	GetLongURL(ctx context.Context, shortCode string) (string, error)

	// IsAliasAvailable reports whether no record exists for the alias.
	// Callers must treat a failed check as unavailable.
	IsAliasAvailable(ctx context.Context, alias string) (bool, error)

	// IncrementClickCount atomically bumps the counter. A missing record is
	// a no-op.
	IncrementClickCount(ctx context.Context, shortCode string) error
}
