package ports

import (
	"context"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// ConfigLoader loads application configuration from persistent storage.
type ConfigLoader interface {
	// LoadGlobal loads the user-level configuration, creating defaults on
	// first run.
	LoadGlobal(ctx context.Context) (*entities.Config, error)

	// LoadLocal loads an optional per-directory configuration; a nil config
	// with nil error means none exists.
	LoadLocal(ctx context.Context, dir string) (*entities.Config, error)
}
