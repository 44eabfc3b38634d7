package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DurableIndex is the persistent vector store holding the indexed corpus.
// The storage engine is owned by the implementation; the core only relies
// on the operations below and on the implementation's own concurrency safety.
type DurableIndex interface {
	// UpsertBySource replaces every record of source with records.
	// Existing records for the source are deleted before the new ones are
	// added, atomically where the backend supports it.
	UpsertBySource(ctx context.Context, source string, records []domain.VectorRecord) error

	// Search returns the k records nearest to vector by Euclidean distance,
	// ascending. An empty index yields an empty slice and no error.
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)

	// Stats reports record and source counts.
	Stats(ctx context.Context) (domain.IndexStats, error)

	// DeleteSource removes every record of source.
	DeleteSource(ctx context.Context, source string) error

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// SourceLister is implemented by durable indexes that can enumerate the
// sources they hold.
type SourceLister interface {
	// Sources returns the distinct sources, sorted.
	Sources(ctx context.Context) ([]string, error)
}
