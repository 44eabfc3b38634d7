package normalisers

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/docx"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/eml"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pdf"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.PageExtractor = (*Registry)(nil)

// Registry dispatches extraction to the first registered extractor that
// supports a path.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.PageExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Defaults returns a registry with the built-in extractors.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(plaintext.New())
	r.Register(docx.New())
	r.Register(eml.New())
	r.Register(pdf.New())
	return r
}

// Register adds an extractor. Earlier registrations take precedence.
func (r *Registry) Register(e driven.PageExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// Supports reports whether any extractor handles path.
func (r *Registry) Supports(path string) bool {
	return r.find(path) != nil
}

// Extract delegates to the matching extractor.
func (r *Registry) Extract(ctx context.Context, path string, data []byte) (domain.Document, error) {
	e := r.find(path)
	if e == nil {
		reason := "unsupported document type"
		if ext := filepath.Ext(path); ext != "" {
			reason += " " + ext
		}
		return domain.Document{}, domain.NewInputError(path, reason, domain.ErrUnsupportedDocument)
	}
	return e.Extract(ctx, path, data)
}

func (r *Registry) find(path string) driven.PageExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		if e.Supports(path) {
			return e
		}
	}
	return nil
}
