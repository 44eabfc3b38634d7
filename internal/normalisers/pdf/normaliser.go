// Package pdf extracts pages from PDF documents with pdftotext (poppler).
//
// pdftotext ends every page with a form feed, so its output splits
// directly into numbered pages.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pages"
)

// Ensure Normaliser implements the interface.
var _ driven.PageExtractor = (*Normaliser)(nil)

// Extensions handled by the PDF normaliser.
var Extensions = []string{".pdf"}

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const (
	toolName = "pdftotext"
	magic    = "%PDF-"

	// maxTitleLen bounds the first line considered as a title.
	maxTitleLen = 200
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Normaliser handles PDF documents.
type Normaliser struct {
	runner CommandRunner
}

// New creates a PDF normaliser that runs pdftotext from PATH.
func New() *Normaliser {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF normaliser that runs commands with runner.
func NewWithRunner(runner CommandRunner) *Normaliser {
	return &Normaliser{runner: runner}
}

// CheckAvailable reports whether pdftotext can be found in PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions tells the user how to install pdftotext.
func InstallInstructions() string {
	return `PDF support requires pdftotext from poppler:
  macOS:          brew install poppler
  Debian/Ubuntu:  apt install poppler-utils
  Fedora:         dnf install poppler-utils`
}

// Supports reports whether path has a .pdf extension.
func (n *Normaliser) Supports(path string) bool {
	return pages.HasExtension(path, Extensions...)
}

// Extract converts the document with pdftotext, keeping its page layout.
// The title is the first short non-empty line, or the file name.
func (n *Normaliser) Extract(ctx context.Context, path string, data []byte) (domain.Document, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return domain.Document{}, domain.NewInputError(path, "not a PDF document", domain.ErrUnsupportedDocument)
	}

	tmp, err := writeTemp(data)
	if err != nil {
		return domain.Document{}, err
	}
	defer os.Remove(tmp)

	out, err := n.runner.Run(ctx, toolName, "-layout", "-enc", "UTF-8", tmp, "-")
	if errors.Is(err, ErrPDFToolNotFound) {
		return domain.Document{}, fmt.Errorf("%w\n%s", ErrPDFToolNotFound, InstallInstructions())
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Document{}, ctxErr
		}
		return domain.Document{}, domain.NewInputError(path, "pdftotext failed", err)
	}

	text := string(out)
	split := pages.Map(pages.Split(text), func(s string) string { return strings.TrimRight(s, " \t\n") })
	if len(split) > 1 && strings.TrimSpace(split[len(split)-1].Text) == "" {
		split = split[:len(split)-1]
	}

	return domain.Document{
		Source: path,
		Title:  extractTitle(text, path),
		Pages:  split,
	}, nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "sercha-rag-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// extractTitle returns the first non-empty line shorter than maxTitleLen,
// or a title derived from the file name.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, pages.FormFeed, ""))
		if line != "" && len(line) < maxTitleLen {
			return line
		}
	}
	return pages.TitleFromPath(path)
}
