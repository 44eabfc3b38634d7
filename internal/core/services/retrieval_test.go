package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

type retrievalFixture struct {
	fs       *fakeFS
	embedder *fakeEmbedder
	durable  *fakeDurable
	cache    *EphemeralCache
	service  *RetrievalService
}

func newRetrievalFixture(t *testing.T, withDurable bool, mutate func(*domain.Settings)) *retrievalFixture {
	t.Helper()

	settings := domain.DefaultSettings()
	settings.Retrieval.TopK = 4
	settings.Ephemeral.Budget = 2
	if mutate != nil {
		mutate(&settings)
	}

	fx := &retrievalFixture{
		fs:       newFakeFS(),
		embedder: newFakeEmbedder(),
	}
	fx.cache = NewEphemeralCache(fx.fs, plaintext.New(), chunker.New(), fx.embedder, settings.Ephemeral)

	if withDurable {
		fx.durable = newFakeDurable()
		fx.service = NewRetrievalService(fx.embedder, fx.durable, fx.cache, settings)
	} else {
		fx.service = NewRetrievalService(fx.embedder, nil, fx.cache, settings)
	}
	return fx
}

// attach stores a one-chunk document whose chunk embeds to vec.
func (fx *retrievalFixture) attach(name, topic string, vec ...float32) {
	text := longText(topic, 2)
	fx.fs.put(name, text, time.Unix(1700000000, 0))
	fx.embedder.set(text, vec...)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)

	_, err := fx.service.Retrieve(context.Background(), "   ", nil, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	assert.True(t, domain.IsInputError(err))
	_, query, _ := fx.embedder.counts()
	assert.Equal(t, 0, query)
}

func TestRetrieve_EmptyIndexYieldsNoInformation(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)

	r, err := fx.service.Retrieve(context.Background(), "what is a tide?", nil, 0)

	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.NotEmpty(t, r.RequestID)

	text, ok := NewContextBuilder(nil).BuildContext(r)
	assert.False(t, ok)
	assert.Equal(t, domain.NoInformationResponse, text)
}

func TestRetrieve_DurableOnly(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.embedder.set("tides", 0, 0)
	fx.durable.add("/corpus/ocean.md", "Ocean", map[string][]float32{
		"near":    {1, 0},
		"nearer":  {0.5, 0},
		"far":     {9, 0},
		"farther": {10, 0},
		"distant": {20, 0},
	})

	r, err := fx.service.Retrieve(context.Background(), "tides", nil, 3)

	require.NoError(t, err)
	require.Len(t, r.Results, 3)
	assert.Equal(t, []float64{0.5, 1, 9}, distances(r.Results))
	require.Len(t, r.Citations, 3)
	assert.Equal(t, "Ocean", r.Citations[0].SourceTitle)
	assert.Equal(t, 1, r.Citations[0].Marker)
}

func TestRetrieve_AttachmentsComeFirst(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.embedder.set("tides", 0, 0)
	fx.durable.add("/corpus/ocean.md", "Ocean", map[string][]float32{
		"a": {0.1, 0},
		"b": {0.2, 0},
		"c": {0.3, 0},
	})
	fx.attach("moon.txt", "the moon", 5, 0)
	fx.attach("sun.txt", "the sun", 3, 0)

	r, err := fx.service.Retrieve(context.Background(), "tides", []string{"moon.txt", "sun.txt"}, 4)

	require.NoError(t, err)
	require.Len(t, r.Results, 4)
	assert.True(t, r.Results[0].Ephemeral)
	assert.Equal(t, "/docs/sun.txt", r.Results[0].Source)
	assert.True(t, r.Results[1].Ephemeral)
	assert.Equal(t, "/docs/moon.txt", r.Results[1].Source)
	assert.False(t, r.Results[2].Ephemeral)
	assert.InDeltaSlice(t, []float64{3, 5, 0.1, 0.2}, distances(r.Results), 1e-6)
	assert.Equal(t, "sun", r.Citations[0].SourceTitle)
}

func TestRetrieve_WithoutDurableIndex(t *testing.T) {
	fx := newRetrievalFixture(t, false, nil)
	fx.embedder.set("tides", 0, 0)
	fx.attach("moon.txt", "the moon", 5, 0)

	r, err := fx.service.Retrieve(context.Background(), "tides", []string{"moon.txt"}, 0)

	require.NoError(t, err)
	require.Len(t, r.Results, 1)
	assert.True(t, r.Results[0].Ephemeral)

	stats, err := fx.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{}, stats)
}

func TestRetrieve_DuplicateRefsBuildOnce(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.attach("moon.txt", "the moon", 5, 0)

	r, err := fx.service.Retrieve(context.Background(), "tides",
		[]string{"moon.txt", "/docs/moon.txt", "/docs/../docs/moon.txt"}, 4)

	require.NoError(t, err)
	require.Len(t, r.Results, 1)
	batch, _, _ := fx.embedder.counts()
	assert.Equal(t, 1, batch)
}

func TestRetrieve_BadAttachmentRejectedBeforeEmbedding(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.attach("moon.txt", "the moon", 5, 0)

	_, err := fx.service.Retrieve(context.Background(), "tides", []string{"moon.txt", "missing.pdf"}, 4)

	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
	batch, query, _ := fx.embedder.counts()
	assert.Equal(t, 0, batch)
	assert.Equal(t, 0, query)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.embedder.queryErr = &domain.UpstreamError{
		Service: "fake-embed", Op: "embed", Status: 401, Err: domain.ErrAuthInvalid,
	}

	_, err := fx.service.Retrieve(context.Background(), "tides", nil, 4)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.False(t, domain.IsRetryable(err))
}

func TestRetrieve_AttachmentBuildFailure(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.attach("moon.txt", "the moon", 5, 0)
	fx.embedder.setErr(&domain.UpstreamError{Service: "fake-embed", Op: "embed_batch", Status: 429, Retryable: true})

	_, err := fx.service.Retrieve(context.Background(), "tides", []string{"moon.txt"}, 4)

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 0, fx.cache.Len())
}

func TestRetrieve_DurableFailure(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.durable.searchErr = errors.New("connection refused")

	_, err := fx.service.Retrieve(context.Background(), "tides", nil, 4)

	require.Error(t, err)
	assert.True(t, domain.IsUpstreamError(err))
	assert.False(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "durable index: search")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetrieve_DurableFailureKeepsAdapterClassification(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.durable.searchErr = &domain.UpstreamError{
		Service:   "sqlite",
		Op:        "search",
		Retryable: true,
		Err:       errors.New("database is locked"),
	}

	_, err := fx.service.Retrieve(context.Background(), "tides", nil, 4)

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestRetrieve_CallerCancellationIsNotUpstream(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.durable.block = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := fx.service.Retrieve(ctx, "tides", nil, 4)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, domain.IsUpstreamError(err))
}

func TestRetrieve_DurableSearchTimeoutIsRetryable(t *testing.T) {
	fx := newRetrievalFixture(t, true, func(s *domain.Settings) {
		s.Retrieval.SearchTimeout = 10 * time.Millisecond
	})
	fx.durable.block = true

	_, err := fx.service.Retrieve(context.Background(), "tides", nil, 4)

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetrieve_CallerTimeoutLeavesBuildRunning(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.attach("moon.txt", "the moon", 5, 0)
	fx.embedder.gate = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fx.service.Retrieve(ctx, "tides", []string{"moon.txt"}, 4)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(fx.embedder.gate)
	require.Eventually(t, func() bool { return fx.cache.Len() == 1 }, 2*time.Second, time.Millisecond)
	assert.Len(t, fx.service.Attachments(), 1)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	texts := map[string][]float32{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		texts[name] = []float32{float32(len(texts)), 0}
	}
	fx.durable.add("/corpus/x.md", "X", texts)

	r, err := fx.service.Retrieve(context.Background(), "q", nil, 0)

	require.NoError(t, err)
	assert.Len(t, r.Results, 4)
}

func TestRetrieve_RequestIDsAreUnique(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)

	first, err := fx.service.Retrieve(context.Background(), "tides", nil, 1)
	require.NoError(t, err)
	second, err := fx.service.Retrieve(context.Background(), "tides", nil, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestRetrievalService_InvalidateAndClear(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.attach("moon.txt", "the moon", 5, 0)
	fx.attach("sun.txt", "the sun", 3, 0)

	_, err := fx.service.Retrieve(context.Background(), "tides", []string{"moon.txt", "sun.txt"}, 4)
	require.NoError(t, err)
	require.Equal(t, 2, fx.cache.Len())

	require.NoError(t, fx.service.InvalidateEphemeral("moon.txt"))
	assert.Equal(t, 1, fx.cache.Len())

	fx.service.ClearAllEphemeral()
	assert.Equal(t, 0, fx.cache.Len())
}

func TestRetrievalService_Stats(t *testing.T) {
	fx := newRetrievalFixture(t, true, nil)
	fx.durable.add("/corpus/a.md", "A", map[string][]float32{"x": {1}, "y": {2}})
	fx.durable.add("/corpus/b.md", "B", map[string][]float32{"z": {3}})

	stats, err := fx.service.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{TotalRecords: 3, DistinctSources: 2}, stats)
}
