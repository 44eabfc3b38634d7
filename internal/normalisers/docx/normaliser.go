// Package docx extracts pages from Word (.docx) documents.
//
// Text comes from word/document.xml. Explicit page breaks (w:br with
// w:type="page") and paragraphs marked page-break-before start a new
// page; rendered page boundaries recorded by Word are ignored because
// they depend on the renderer that last saved the file.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pages"
)

// Ensure Normaliser implements the interface.
var _ driven.PageExtractor = (*Normaliser)(nil)

// Extensions handled by the DOCX normaliser.
var Extensions = []string{".docx"}

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Supports reports whether path has a .docx extension.
func (n *Normaliser) Supports(path string) bool {
	return pages.HasExtension(path, Extensions...)
}

// Extract reads the document body page by page.
// The title comes from the document properties, or the file name.
func (n *Normaliser) Extract(_ context.Context, path string, data []byte) (domain.Document, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Document{}, domain.NewInputError(path, "not a DOCX archive", domain.ErrUnsupportedDocument)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return domain.Document{}, domain.NewInputError(path, "missing "+documentPart, err)
	}

	text, err := bodyText(body)
	if err != nil {
		return domain.Document{}, domain.NewInputError(path, "malformed "+documentPart, err)
	}

	return domain.Document{
		Source: path,
		Title:  extractTitle(reader, path),
		Pages:  pages.Map(pages.Split(text), strings.TrimSpace),
	}, nil
}

// bodyText walks the WordprocessingML body and returns its text with
// paragraphs on separate lines and form feeds at page breaks.
func bodyText(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		out    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				if attr(t, "type") == "page" {
					out.WriteString(pages.FormFeed)
				} else {
					out.WriteByte('\n')
				}
			case "pageBreakBefore":
				if v := attr(t, "val"); v == "" || v == "1" || v == "true" {
					out.WriteString(pages.FormFeed)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type coreProperties struct {
	Title string `xml:"title"`
}

// extractTitle reads dc:title from docProps/core.xml or falls back to the
// file name.
func extractTitle(reader *zip.Reader, path string) string {
	if data, err := readPart(reader, corePart); err == nil {
		var core coreProperties
		if xml.Unmarshal(data, &core) == nil {
			if title := strings.TrimSpace(core.Title); title != "" {
				return title
			}
		}
	}
	return pages.TitleFromPath(path)
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}
