package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// ContextBuilder renders a retrieval into the context handed to a model.
// The boolean is false when the retrieval is empty and the returned text is
// the no-information response.
type ContextBuilder interface {
	BuildContext(r *domain.Retrieval) (string, bool)
}

// SourceLister lists the sources held by the durable index.
type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers queries. Required.
	Retrieval driving.RetrievalService

	// Ingest writes files into the durable index. Optional; the
	// index_document tool is only registered when set.
	Ingest driving.IngestService

	// Context renders retrievals for the model. Optional.
	Context ContextBuilder

	// Sources lists durable sources for the sources resource. Optional.
	Sources SourceLister
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
