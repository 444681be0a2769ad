package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caseway/caseway/pkg/persistence"
	"github.com/caseway/caseway/pkg/persistence/file"
	"github.com/caseway/caseway/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL
// scheme: postgres URLs get the PostgreSQL store, anything else is
// treated as a file-store root path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
