package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestNearest_KeepsBestK(t *testing.T) {
	n := newNearest(3)
	for _, d := range []float64{9, 4, 7, 1, 8, 2, 6, 3, 5} {
		n.offer(domain.SearchResult{Chunk: domain.Chunk{Source: "/s.txt"}, Distance: d})
	}

	got := n.results()

	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Distance, got[1].Distance, got[2].Distance})
	assert.Equal(t, 3, n.Len())
}

func TestNearest_TiesFollowSourceThenIndex(t *testing.T) {
	n := newNearest(2)
	n.offer(domain.SearchResult{Chunk: domain.Chunk{Source: "/b.txt", ChunkIndex: 0}, Distance: 1})
	n.offer(domain.SearchResult{Chunk: domain.Chunk{Source: "/a.txt", ChunkIndex: 1}, Distance: 1})
	n.offer(domain.SearchResult{Chunk: domain.Chunk{Source: "/a.txt", ChunkIndex: 0}, Distance: 1})

	got := n.results()

	require.Len(t, got, 2)
	assert.Equal(t, "/a.txt", got[0].Source)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, "/a.txt", got[1].Source)
	assert.Equal(t, 1, got[1].ChunkIndex)
}

func TestStore_SearchReturnsNearestOfManyRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Spread 60 records over several sources in an order unrelated to
	// their distance from the origin.
	for s := 0; s < 6; s++ {
		source := fmt.Sprintf("/docs/%d.txt", s)
		var records []domain.VectorRecord
		for i := 0; i < 10; i++ {
			v := float32((i*7+s*3)%60 + 1)
			records = append(records, record(source, i, 1, fmt.Sprintf("%s-%d", source, i), v))
		}
		require.NoError(t, store.UpsertBySource(ctx, source, records))
	}

	results, err := store.Search(ctx, []float32{0}, 4)

	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.False(t, domain.LessResult(results[i], results[i-1]), "results out of order at %d", i)
	}
	assert.InDelta(t, 1.0, results[0].Distance, 1e-6)
}
