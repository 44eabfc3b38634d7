// Package plaintext extracts pages from plain text files.
package plaintext

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pages"
)

// Ensure Normaliser implements the interface.
var _ driven.PageExtractor = (*Normaliser)(nil)

// Extensions handled by the plain text normaliser.
var Extensions = []string{".txt", ".text", ".log", ".csv", ".tsv", ".rst"}

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Supports reports whether path has a plain text extension.
func (n *Normaliser) Supports(path string) bool {
	return pages.HasExtension(path, Extensions...)
}

// Extract splits the file into pages on form feeds.
// The title is derived from the file name.
func (n *Normaliser) Extract(_ context.Context, path string, data []byte) (domain.Document, error) {
	if err := pages.CheckText(path, data); err != nil {
		return domain.Document{}, err
	}

	return domain.Document{
		Source: path,
		Title:  pages.TitleFromPath(path),
		Pages:  pages.Split(string(data)),
	}, nil
}
