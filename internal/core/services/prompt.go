package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

const defaultAnswerContext = `Answer the question using only the numbered passages below.
Cite passages by their marker, for example [1]. If the passages do not
contain the answer, say that you do not know.

%s`

// ContextBuilder renders retrieval results into the context handed to a
// language model.
type ContextBuilder struct {
	prompts driven.PromptStore
}

// NewContextBuilder creates a builder. prompts may be nil, in which case
// the built-in templates are used.
func NewContextBuilder(prompts driven.PromptStore) *ContextBuilder {
	return &ContextBuilder{prompts: prompts}
}

// BuildContext returns the model context for r and true, or the fixed
// no-information response and false when r holds no results. Callers must
// not invoke the model when the second value is false.
func (b *ContextBuilder) BuildContext(r *domain.Retrieval) (string, bool) {
	if r.Empty() {
		return b.load(driven.PromptNoInformation, domain.NoInformationResponse), false
	}

	var passages strings.Builder
	for i, res := range r.Results {
		c := r.Citations[i]
		fmt.Fprintf(&passages, "%s %s (p. %d)\n%s\n\n", c.Label(), c.SourceTitle, c.Page, res.Text)
	}

	template := b.load(driven.PromptAnswerContext, defaultAnswerContext)
	if !strings.Contains(template, "%s") {
		logger.Warn("prompt %q has no %%s placeholder, using built-in template", driven.PromptAnswerContext)
		template = defaultAnswerContext
	}
	return strings.Replace(template, "%s", strings.TrimRight(passages.String(), "\n"), 1), true
}

// FormatSources renders one "[n] title, page p" line per citation.
func FormatSources(citations []domain.Citation) string {
	lines := make([]string, len(citations))
	for i, c := range citations {
		lines[i] = fmt.Sprintf("%s %s, page %d", c.Label(), c.SourceTitle, c.Page)
	}
	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) load(name, fallback string) string {
	if b.prompts == nil {
		return fallback
	}
	s, err := b.prompts.Load(name)
	if err != nil || strings.TrimSpace(s) == "" {
		logger.Debug("prompt %q unavailable, using built-in: %v", name, err)
		return fallback
	}
	return strings.TrimSpace(s)
}
