package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pages"
)

// Ensure Normaliser implements the interface.
var _ driven.PageExtractor = (*Normaliser)(nil)

// Extensions handled by the HTML normaliser.
var Extensions = []string{".html", ".htm", ".xhtml"}

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Supports reports whether path has an HTML extension.
func (n *Normaliser) Supports(path string) bool {
	return pages.HasExtension(path, Extensions...)
}

// Extract converts an HTML document to page-split plain text.
// Elements styled with a CSS page break start a new page, as do form feeds.
func (n *Normaliser) Extract(_ context.Context, path string, data []byte) (domain.Document, error) {
	if err := pages.CheckText(path, data); err != nil {
		return domain.Document{}, err
	}

	content := string(data)
	title := extractHTMLTitle(content, path)

	content = headTag.ReplaceAllString(content, "")
	content = pageBreaks.ReplaceAllStringFunc(content, func(tag string) string {
		return pages.FormFeed + tag
	})

	return domain.Document{
		Source: path,
		Title:  title,
		Pages:  pages.Map(pages.Split(content), stripHTML),
	}, nil
}

var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	pageBreaks        = regexp.MustCompile(`(?i)<[a-z0-9]+[^>]*(page-break-(before|after)|break-(before|after))\s*:\s*(always|page)[^>]*>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

// extractHTMLTitle returns the unescaped <title>, or a title derived from
// the file name.
func extractHTMLTitle(content, path string) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		if title := html.UnescapeString(strings.TrimSpace(m[1])); title != "" {
			return title
		}
	}
	return pages.TitleFromPath(path)
}

// Text returns the readable text of an HTML fragment, one block per line.
func Text(fragment string) string {
	return stripHTML(fragment)
}

// stripHTML drops non-content elements and markup, turning block
// boundaries into line breaks.
func stripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, htmlComments} {
		content = re.ReplaceAllString(content, "")
	}

	for _, re := range []*regexp.Regexp{openBlockElements, blockElements, brTags, hrTags} {
		content = re.ReplaceAllString(content, "\n")
	}

	content = html.UnescapeString(allTags.ReplaceAllString(content, ""))
	content = multiSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
