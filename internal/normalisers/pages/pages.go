// Package pages holds helpers shared by the page extractors.
package pages

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// FormFeed separates pages in extracted text.
const FormFeed = "\f"

// sniffLen is how much of a file is inspected for binary content.
const sniffLen = 8192

// Split breaks text into 1-indexed pages on form feeds.
// Line endings are normalised to \n. A document without form feeds is a
// single page.
func Split(text string) []domain.Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, FormFeed)

	pages := make([]domain.Page, len(parts))
	for i, part := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: part}
	}
	return pages
}

// Map applies fn to the text of every page, keeping page numbers.
func Map(in []domain.Page, fn func(string) string) []domain.Page {
	out := make([]domain.Page, len(in))
	for i, p := range in {
		out[i] = domain.Page{Number: p.Number, Text: fn(p.Text)}
	}
	return out
}

// TitleFromPath derives a human-readable title from a file name.
func TitleFromPath(path string) string {
	filename := filepath.Base(path)

	// Remove extension for cleaner title
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}

	// Replace underscores and dashes with spaces
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")

	return filename
}

// CheckText rejects content that is not a text document.
func CheckText(path string, data []byte) error {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return domain.NewInputError(path, "not a text document", domain.ErrUnsupportedDocument)
	}
	if !utf8.Valid(data) {
		return domain.NewInputError(path, "document is not valid UTF-8", domain.ErrUnsupportedDocument)
	}
	return nil
}

// HasExtension reports whether path ends in one of exts (case-insensitive).
func HasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
