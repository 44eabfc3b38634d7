package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// Chunker splits an extracted document into page-bounded chunks.
// Implementations must be deterministic: identical input yields identical
// chunk boundaries, counts and page attributions.
type Chunker interface {
	// Chunk returns the chunks of doc with sequential ChunkIndex values.
	Chunk(doc domain.Document) []domain.Chunk
}
