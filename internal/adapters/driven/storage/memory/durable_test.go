package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func record(source string, index int, text string, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:     domain.RecordID(source, index),
		Vector: vec,
		Chunk: domain.Chunk{
			Source:     source,
			Title:      "Title of " + source,
			Page:       1,
			ChunkIndex: index,
			Text:       text,
		},
	}
}

func TestNewDurableIndex(t *testing.T) {
	index := NewDurableIndex()
	require.NotNil(t, index)
	assert.NotNil(t, index.sources)
}

func TestDurableIndex_SearchEmpty(t *testing.T) {
	index := NewDurableIndex()

	results, err := index.Search(context.Background(), []float32{1, 0}, 5)

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDurableIndex_SearchOrdersByDistance(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{
		record("/a.txt", 0, "far", 10, 0),
		record("/a.txt", 1, "near", 1, 0),
	}))
	require.NoError(t, index.UpsertBySource(ctx, "/b.txt", []domain.VectorRecord{
		record("/b.txt", 0, "middle", 3, 0),
	}))

	results, err := index.Search(ctx, []float32{0, 0}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Text)
	assert.Equal(t, "middle", results[1].Text)
	assert.InDelta(t, 1.0, results[0].Distance, 1e-9)
	assert.False(t, results[0].Ephemeral)
}

func TestDurableIndex_TiesAreDeterministic(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/b.txt", []domain.VectorRecord{record("/b.txt", 0, "b0", 1)}))
	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{
		record("/a.txt", 1, "a1", 1),
		record("/a.txt", 0, "a0", 1),
	}))

	results, err := index.Search(ctx, []float32{0}, 3)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a0", results[0].Text)
	assert.Equal(t, "a1", results[1].Text)
	assert.Equal(t, "b0", results[2].Text)
}

func TestDurableIndex_UpsertReplacesSource(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{
		record("/a.txt", 0, "old one", 1),
		record("/a.txt", 1, "old two", 2),
	}))
	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{
		record("/a.txt", 0, "new", 1),
	}))

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{TotalRecords: 1, DistinctSources: 1}, stats)

	results, err := index.Search(ctx, []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
}

func TestDurableIndex_UpsertEmptyRemovesSource(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{record("/a.txt", 0, "x", 1)}))
	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", nil))

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DistinctSources)
}

func TestDurableIndex_CopiesVectors(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()
	vec := []float32{1, 0}

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{record("/a.txt", 0, "x", vec...)}))
	vec[0] = 100

	results, err := index.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Distance)
}

func TestDurableIndex_SkipsDimensionMismatch(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{
		record("/a.txt", 0, "three", 1, 2, 3),
		record("/a.txt", 1, "two", 1, 2),
	}))

	results, err := index.Search(ctx, []float32{1, 2}, 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Text)
}

func TestDurableIndex_NonPositiveK(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()
	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{record("/a.txt", 0, "x", 1)}))

	results, err := index.Search(ctx, []float32{1}, 0)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDurableIndex_DeleteAndClear(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{record("/a.txt", 0, "a", 1)}))
	require.NoError(t, index.UpsertBySource(ctx, "/b.txt", []domain.VectorRecord{record("/b.txt", 0, "b", 1)}))

	require.NoError(t, index.DeleteSource(ctx, "/a.txt"))
	sources, err := index.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.txt"}, sources)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DistinctSources)

	require.NoError(t, index.Clear(ctx))
	stats, err = index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{}, stats)
	assert.NoError(t, index.Close())
}

func TestDurableIndex_ConcurrentAccess(t *testing.T) {
	index := NewDurableIndex()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			source := "/doc" + string(rune('a'+i)) + ".txt"
			_ = index.UpsertBySource(ctx, source, []domain.VectorRecord{record(source, 0, "x", float32(i))})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = index.Search(ctx, []float32{0}, 3)
		}()
	}
	wg.Wait()

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.DistinctSources)
}

func TestDurableIndex_SearchHonoursContext(t *testing.T) {
	index := NewDurableIndex()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, index.UpsertBySource(ctx, "/a.txt", []domain.VectorRecord{record("/a.txt", 0, "x", 1)}))
	cancel()

	_, err := index.Search(ctx, []float32{1}, 1)

	assert.ErrorIs(t, err, context.Canceled)
}
