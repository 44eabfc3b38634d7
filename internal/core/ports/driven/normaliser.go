package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// PageExtractor turns raw file bytes into page-split text.
// Each extractor handles specific file types (e.g., plain text, Markdown).
type PageExtractor interface {
	// Supports reports whether the extractor handles the file at path.
	Supports(path string) bool

	// Extract converts data into a Document whose Source is path.
	// Content that cannot be a text document is rejected with a
	// *domain.InputError.
	Extract(ctx context.Context, path string, data []byte) (domain.Document, error)
}
