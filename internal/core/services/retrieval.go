package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService answers queries against the durable index and the
// documents attached to each request.
type RetrievalService struct {
	embedder        driven.EmbeddingService
	durable         driven.DurableIndex
	cache           *EphemeralCache
	settings        domain.RetrievalSettings
	ephemeralBudget int
}

// NewRetrievalService creates a retrieval service.
// The durable index is optional (can be nil); without it only attached
// documents are searched.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	durable driven.DurableIndex,
	cache *EphemeralCache,
	settings domain.Settings,
) *RetrievalService {
	retrieval := settings.Retrieval
	if retrieval.TopK <= 0 {
		retrieval.TopK = domain.DefaultSettings().Retrieval.TopK
	}
	return &RetrievalService{
		embedder:        embedder,
		durable:         durable,
		cache:           cache,
		settings:        retrieval,
		ephemeralBudget: settings.Ephemeral.Budget,
	}
}

// Retrieve embeds query once, fans out to the durable index and to every
// attached document, and merges the results under a budget of topK.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, refs []string, topK int,
) (*domain.Retrieval, error) {
	requestID := uuid.NewString()
	logger.Section("Retrieval")
	logger.Debug("[%s] query=%q refs=%d topK=%d", requestID, query, len(refs), topK)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewInputError("", "query is empty", domain.ErrEmptyQuery)
	}
	if topK <= 0 {
		topK = s.settings.TopK
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	// Attachments are validated up front so bad input costs no embedding.
	paths, err := s.resolveRefs(refs)
	if err != nil {
		logger.Debug("[%s] rejected attachment: %v", requestID, err)
		return nil, err
	}

	var (
		queryVec []float32
		durable  []domain.SearchResult
		indexes  = make([]*domain.EphemeralIndex, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := s.embedQuery(gctx, query)
		if err != nil {
			return err
		}
		queryVec = vec

		durable, err = s.searchDurable(gctx, vec, topK)
		return err
	})
	for i, path := range paths {
		g.Go(func() error {
			idx, err := s.cache.GetIndex(gctx, path)
			if err != nil {
				return fmt.Errorf("attachment %s: %w", path, err)
			}
			indexes[i] = idx
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("[%s] retrieval failed: %v", requestID, err)
		return nil, err
	}

	ephemeral := make([][]domain.SearchResult, 0, len(indexes))
	for _, idx := range indexes {
		ephemeral = append(ephemeral, s.cache.Search(queryVec, idx, topK))
	}

	results := Merge(ephemeral, durable, topK, s.ephemeralBudget, len(paths) > 0)
	logger.Debug("[%s] merged %d results (%d durable candidates, %d attachments)",
		requestID, len(results), len(durable), len(paths))

	return &domain.Retrieval{
		RequestID: requestID,
		Results:   results,
		Citations: Citations(results),
	}, nil
}

// InvalidateEphemeral drops the cached index of ref.
func (s *RetrievalService) InvalidateEphemeral(ref string) error {
	return s.cache.Invalidate(ref)
}

// ClearAllEphemeral drops every cached attachment index.
func (s *RetrievalService) ClearAllEphemeral() {
	s.cache.Clear()
}

// Stats reports the durable index contents. Without a durable index the
// stats are empty.
func (s *RetrievalService) Stats(ctx context.Context) (domain.IndexStats, error) {
	if s.durable == nil {
		return domain.IndexStats{}, nil
	}
	stats, err := s.durable.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("durable stats: %w", err)
	}
	return stats, nil
}

// Attachments lists the currently cached attachment indexes.
func (s *RetrievalService) Attachments() []domain.EphemeralEntryInfo {
	return s.cache.Entries()
}

// resolveRefs validates every reference and drops those that resolve to
// a path already seen, keeping first-seen order.
func (s *RetrievalService) resolveRefs(refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(refs))
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		path, err := s.cache.Resolve(ref)
		if err != nil {
			return nil, err
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	defer logger.Timer("embed query")()

	ectx, cancel := withTimeout(ctx, s.settings.EmbedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(ectx, query)
	if err != nil {
		return nil, upstreamFailure(ctx, err, s.embedder.ModelName(), "embed_query")
	}
	if len(vec) == 0 {
		return nil, &domain.UpstreamError{
			Service: s.embedder.ModelName(),
			Op:      "embed_query",
			Err:     errors.New("empty embedding"),
		}
	}
	return vec, nil
}

func (s *RetrievalService) searchDurable(ctx context.Context, vec []float32, k int) ([]domain.SearchResult, error) {
	if s.durable == nil {
		return nil, nil
	}
	defer logger.Timer("durable search")()

	sctx, cancel := withTimeout(ctx, s.settings.SearchTimeout)
	defer cancel()

	results, err := s.durable.Search(sctx, vec, k)
	if err != nil {
		return nil, upstreamFailure(ctx, err, "durable index", "search")
	}
	return results, nil
}

// upstreamFailure reports a failed collaborator call as an UpstreamError.
// Classifications made by the adapter are kept. A call that ran out of its
// own time budget is retryable; other unclassified failures are not.
// Cancellation by the caller is returned as is.
func upstreamFailure(parent context.Context, err error, service, op string) error {
	if parent.Err() != nil || domain.IsUpstreamError(err) {
		return err
	}
	return &domain.UpstreamError{
		Service:   service,
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
