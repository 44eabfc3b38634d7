package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// documentGate rejects document references that cannot be indexed,
// before any reading, chunking or embedding happens.
type documentGate struct {
	fs           driven.FileSystem
	extractor    driven.PageExtractor
	maxFileBytes int64
}

// check resolves ref and returns its canonical path and current stat.
func (g documentGate) check(ref string) (string, domain.FileInfo, error) {
	if strings.TrimSpace(ref) == "" {
		return "", domain.FileInfo{}, domain.NewInputError(ref, "empty document reference", nil)
	}

	path, err := g.fs.Resolve(ref)
	if err != nil {
		return "", domain.FileInfo{}, domain.NewInputError(ref, "document not found", err)
	}

	info, err := g.fs.Stat(path)
	if err != nil {
		return "", domain.FileInfo{}, domain.NewInputError(ref, "document is unreadable", err)
	}
	if info.IsDir {
		return "", domain.FileInfo{}, domain.NewInputError(ref, "document is a directory", nil)
	}
	if err := g.checkSize(ref, info.Size); err != nil {
		return "", domain.FileInfo{}, err
	}
	if !g.extractor.Supports(path) {
		return "", domain.FileInfo{}, domain.NewInputError(ref, "unsupported document type", domain.ErrUnsupportedDocument)
	}

	return path, info, nil
}

// read loads path, re-checking the size in case the file grew after stat.
func (g documentGate) read(path string) ([]byte, error) {
	data, err := g.fs.ReadFile(path)
	if err != nil {
		return nil, domain.NewInputError(path, "document is unreadable", err)
	}
	if err := g.checkSize(path, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (g documentGate) checkSize(ref string, size int64) error {
	if size > g.maxFileBytes {
		reason := fmt.Sprintf("document is %d bytes, limit is %d", size, g.maxFileBytes)
		return domain.NewInputError(ref, reason, domain.ErrDocumentTooLarge)
	}
	return nil
}
