// Package chunker splits page-extracted documents into overlapping,
// sentence-aligned chunks that never cross a page boundary.
package chunker

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Default sizing, in tokens and characters.
const (
	DefaultTargetTokens  = 512
	DefaultCharsPerToken = 4
	DefaultOverlap       = 200
	DefaultMinLength     = 50
)

// boundaryWindowDivisor selects the trailing fifth of a window as the
// region searched for a sentence boundary.
const boundaryWindowDivisor = 5

// Chunker splits documents into chunks.
type Chunker struct {
	targetTokens  int
	charsPerToken int
	overlap       int
	minLength     int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithTargetTokens sets the approximate chunk size in tokens.
func WithTargetTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.targetTokens = n
		}
	}
}

// WithCharsPerToken sets the characters-per-token ratio.
func WithCharsPerToken(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.charsPerToken = n
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinLength sets the length below which chunks are dropped.
func WithMinLength(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minLength = n
		}
	}
}

// FromSettings applies configured chunk settings.
func FromSettings(s domain.ChunkSettings) Option {
	return func(c *Chunker) {
		for _, opt := range []Option{
			WithTargetTokens(s.TargetTokens),
			WithCharsPerToken(s.CharsPerToken),
			WithOverlap(s.Overlap),
			WithMinLength(s.MinLength),
		} {
			opt(c)
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetTokens:  DefaultTargetTokens,
		charsPerToken: DefaultCharsPerToken,
		overlap:       DefaultOverlap,
		minLength:     DefaultMinLength,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.target() {
		c.overlap = c.target() / 4
	}

	return c
}

// target returns the chunk budget in characters.
func (c *Chunker) target() int {
	return c.targetTokens * c.charsPerToken
}

// Chunk splits doc page by page. Chunk indexes run across the whole
// document and are assigned after short chunks are dropped.
func (c *Chunker) Chunk(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk

	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}

		runes := []rune(page.Text)
		for _, sp := range c.spans(runes) {
			text := strings.TrimSpace(string(runes[sp.start:sp.end]))
			if len([]rune(text)) < c.minLength {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Source:     doc.Source,
				Title:      doc.Title,
				Page:       page.Number,
				ChunkIndex: len(chunks),
				Text:       text,
			})
		}
	}

	return chunks
}

// span is a half-open rune range within one page.
type span struct {
	start, end int
}

// spans computes the window positions for one page.
func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	target := c.target()
	spans := make([]span, 0, n/(target-c.overlap)+1)

	start := 0
	for start < n {
		end := start + target
		cut := n
		if end < n {
			cut = findCut(runes, start, end, target/boundaryWindowDivisor)
		}
		spans = append(spans, span{start: start, end: cut})

		if cut >= n {
			break
		}

		// Step back by the overlap, but always make progress.
		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return spans
}

// findCut picks where the window [start, end) should end.
// Preference: sentence end within the trailing region, then the last word
// boundary in the window, then the hard budget.
func findCut(runes []rune, start, end, trailing int) int {
	from := end - trailing
	if from <= start {
		from = start + 1
	}

	for i := end - 1; i >= from; i-- {
		if isSentenceBoundary(runes, i) {
			return i + 1
		}
	}

	for i := end - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return end
}

// isSentenceBoundary reports whether runes[i] ends a sentence: terminal
// punctuation followed by whitespace and an upper-case letter.
func isSentenceBoundary(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+2 >= len(runes) {
		return false
	}
	return unicode.IsSpace(runes[i+1]) && unicode.IsUpper(runes[i+2])
}
