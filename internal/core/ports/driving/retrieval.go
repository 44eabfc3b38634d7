package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService answers queries against the durable corpus and any
// documents attached to the request.
type RetrievalService interface {
	// Retrieve embeds query once, searches the durable index and every
	// referenced document, and returns at most topK merged results with
	// citations. A topK of zero uses the configured default. An empty
	// result is not an error; see domain.Retrieval.Empty.
	Retrieve(ctx context.Context, query string, refs []string, topK int) (*domain.Retrieval, error)

	// InvalidateEphemeral drops the cached index of one attached document.
	InvalidateEphemeral(ref string) error

	// ClearAllEphemeral drops every cached attachment index.
	ClearAllEphemeral()

	// Stats reports the durable index contents.
	Stats(ctx context.Context) (domain.IndexStats, error)

	// Attachments lists the attached documents currently cached.
	Attachments() []domain.EphemeralEntryInfo
}

// IngestService writes documents into the durable index.
type IngestService interface {
	// IndexFile extracts, chunks and embeds one file and replaces its
	// records in the durable index.
	IndexFile(ctx context.Context, ref string) (domain.IngestReport, error)

	// IndexFiles indexes several files, stopping at the first failure.
	IndexFiles(ctx context.Context, refs []string) ([]domain.IngestReport, error)

	// RemoveSource deletes every durable record of one file.
	RemoveSource(ctx context.Context, ref string) error
}
