package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// ingestConcurrency bounds how many files IndexFiles processes at once.
const ingestConcurrency = 4

// IngestService writes documents into the durable index.
type IngestService struct {
	fs        driven.FileSystem
	extractor driven.PageExtractor
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	durable   driven.DurableIndex
	gate      documentGate
}

// NewIngestService creates an ingest service. Files larger than
// maxFileBytes are rejected.
func NewIngestService(
	fs driven.FileSystem,
	extractor driven.PageExtractor,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	durable driven.DurableIndex,
	maxFileBytes int64,
) *IngestService {
	if maxFileBytes <= 0 {
		maxFileBytes = domain.DefaultSettings().Ephemeral.MaxFileBytes
	}
	return &IngestService{
		fs:        fs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		durable:   durable,
		gate:      documentGate{fs: fs, extractor: extractor, maxFileBytes: maxFileBytes},
	}
}

// IndexFile extracts, chunks and embeds one file, then replaces every
// durable record of that file with the new ones.
func (s *IngestService) IndexFile(ctx context.Context, ref string) (domain.IngestReport, error) {
	if s.durable == nil {
		return domain.IngestReport{}, domain.ErrIndexUnavailable
	}
	if s.embedder == nil {
		return domain.IngestReport{}, domain.ErrEmbeddingUnavailable
	}

	path, _, err := s.gate.check(ref)
	if err != nil {
		return domain.IngestReport{}, err
	}
	logger.Debug("ingest: indexing %s", path)

	data, err := s.gate.read(path)
	if err != nil {
		return domain.IngestReport{}, err
	}

	doc, err := s.extractor.Extract(ctx, path, data)
	if err != nil {
		return domain.IngestReport{}, err
	}

	chunks := s.chunker.Chunk(doc)
	report := domain.IngestReport{
		Source: path,
		Title:  doc.Title,
		Pages:  len(doc.Pages),
		Chunks: len(chunks),
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		vectors, err = s.embedder.EmbedBatch(ctx, domain.Texts(chunks))
		if err != nil {
			return domain.IngestReport{}, fmt.Errorf("embed %s: %w", path, err)
		}
	}

	records, err := domain.NewVectorRecords(chunks, vectors)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("embed %s: %w", path, err)
	}

	if err := s.durable.UpsertBySource(ctx, path, records); err != nil {
		return domain.IngestReport{}, fmt.Errorf("upsert %s: %w", path, err)
	}

	logger.Debug("ingest: %s -> %d pages, %d chunks", path, report.Pages, report.Chunks)
	return report, nil
}

// IndexFiles indexes refs concurrently. Reports are returned in input
// order; the first failure cancels the remaining work.
func (s *IngestService) IndexFiles(ctx context.Context, refs []string) ([]domain.IngestReport, error) {
	reports := make([]domain.IngestReport, len(refs))
	runID := uuid.NewString()
	logger.Debug("[%s] ingest run: %d files", runID, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			report, err := s.IndexFile(gctx, ref)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("[%s] ingest run failed: %v", runID, err)
		return nil, err
	}
	logger.Debug("[%s] ingest run done", runID)
	return reports, nil
}

// RemoveSource deletes every durable record of ref. A file that no longer
// exists is removed by its reference as given.
func (s *IngestService) RemoveSource(ctx context.Context, ref string) error {
	if s.durable == nil {
		return domain.ErrIndexUnavailable
	}
	if strings.TrimSpace(ref) == "" {
		return domain.NewInputError(ref, "empty document reference", nil)
	}

	source, err := s.fs.Resolve(ref)
	if err != nil {
		source = ref
	}

	if err := s.durable.DeleteSource(ctx, source); err != nil {
		return fmt.Errorf("delete %s: %w", source, err)
	}
	logger.Debug("ingest: removed %s", source)
	return nil
}
