package memory

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure DurableIndex implements the interfaces.
var (
	_ driven.DurableIndex = (*DurableIndex)(nil)
	_ driven.SourceLister = (*DurableIndex)(nil)
)

// DurableIndex is an in-memory implementation of driven.DurableIndex.
// Records are lost when the process exits. Search is a brute-force scan.
type DurableIndex struct {
	mu      sync.RWMutex
	sources map[string][]domain.VectorRecord
}

// NewDurableIndex creates an empty in-memory durable index.
func NewDurableIndex() *DurableIndex {
	return &DurableIndex{
		sources: make(map[string][]domain.VectorRecord),
	}
}

// UpsertBySource replaces every record of source.
func (d *DurableIndex) UpsertBySource(_ context.Context, source string, records []domain.VectorRecord) error {
	copied := make([]domain.VectorRecord, len(records))
	for i, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		copied[i] = r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(copied) == 0 {
		delete(d.sources, source)
		return nil
	}
	d.sources[source] = copied
	return nil
}

// Search returns the k records nearest to vector.
func (d *DurableIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]domain.SearchResult, 0)
	for _, records := range d.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, r := range records {
			dist := domain.EuclideanDistance(vector, r.Vector)
			if math.IsInf(dist, 1) {
				continue
			}
			results = append(results, domain.SearchResult{Chunk: r.Chunk, Distance: dist})
		}
	}

	domain.SortByDistance(results)
	return domain.Truncate(results, k), nil
}

// Stats reports record and source counts.
func (d *DurableIndex) Stats(_ context.Context) (domain.IndexStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := domain.IndexStats{DistinctSources: len(d.sources)}
	for _, records := range d.sources {
		stats.TotalRecords += len(records)
	}
	return stats, nil
}

// DeleteSource removes every record of source.
func (d *DurableIndex) DeleteSource(_ context.Context, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sources, source)
	return nil
}

// Clear removes all records.
func (d *DurableIndex) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = make(map[string][]domain.VectorRecord)
	return nil
}

// Sources lists the distinct sources in the index.
func (d *DurableIndex) Sources(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sources := make([]string, 0, len(d.sources))
	for source := range d.sources {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	return sources, nil
}

// Close is a no-op for the in-memory index.
func (d *DurableIndex) Close() error {
	return nil
}
