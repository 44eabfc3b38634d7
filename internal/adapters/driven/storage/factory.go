// Package storage selects the durable index backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// OpenDurableIndex opens the backend selected by the DSN.
// Failures wrap domain.ErrIndexUnavailable.
func OpenDurableIndex(ctx context.Context, settings domain.DurableSettings) (driven.DurableIndex, error) {
	backend := settings.Backend()
	logger.Debug("storage: opening %s durable index", backend)

	switch backend {
	case domain.DurableBackendMemory:
		return memory.NewDurableIndex(), nil

	case domain.DurableBackendSQLite:
		store, err := sqlite.NewStore(strings.TrimPrefix(settings.DSN, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return store, nil

	case domain.DurableBackendPostgres:
		store, err := postgres.NewStore(ctx, settings.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported backend %q", domain.ErrIndexUnavailable, backend)
	}
}
