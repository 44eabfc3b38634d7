package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestSupports(t *testing.T) {
	normaliser := New()

	assert.True(t, normaliser.Supports("/site/index.html"))
	assert.True(t, normaliser.Supports("/site/PAGE.HTM"))
	assert.False(t, normaliser.Supports("/site/notes.md"))
}

func TestExtract_Success(t *testing.T) {
	normaliser := New()
	content := "<html><head><title>Handbook</title></head><body><h1>Welcome</h1><p>Read this first.</p></body></html>"

	doc, err := normaliser.Extract(context.Background(), "/docs/handbook.html", []byte(content))

	require.NoError(t, err)
	assert.Equal(t, "/docs/handbook.html", doc.Source)
	assert.Equal(t, "Handbook", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Welcome\nRead this first.", doc.Pages[0].Text)
}

func TestExtract_PageBreaks(t *testing.T) {
	normaliser := New()
	content := `<p>First page.</p><div style="page-break-before: always">Second page.</div>` +
		`<section style="break-before: page"><p>Third page.</p></section>`

	doc, err := normaliser.Extract(context.Background(), "/docs/print.html", []byte(content))

	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "First page.", doc.Pages[0].Text)
	assert.Equal(t, "Second page.", doc.Pages[1].Text)
	assert.Equal(t, "Third page.", doc.Pages[2].Text)
	assert.Equal(t, 3, doc.Pages[2].Number)
}

func TestExtract_EmptyContent(t *testing.T) {
	doc, err := New().Extract(context.Background(), "/empty.html", []byte{})

	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Empty(t, doc.Pages[0].Text)
}

func TestExtract_Binary(t *testing.T) {
	_, err := New().Extract(context.Background(), "/x.html", []byte{'<', 0, '>'})

	assert.True(t, domain.IsInputError(err))
}

func TestExtract_TitleExtraction(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		path          string
		expectedTitle string
	}{
		{
			name:          "title tag",
			content:       "<html><head><title>My Document</title></head><body></body></html>",
			path:          "/doc.html",
			expectedTitle: "My Document",
		},
		{
			name:          "title with extra spaces",
			content:       "<title>   Spaced Title   </title>",
			path:          "/doc.html",
			expectedTitle: "Spaced Title",
		},
		{
			name:          "title with HTML entities",
			content:       "<title>Tom &amp; Jerry</title>",
			path:          "/doc.html",
			expectedTitle: "Tom & Jerry",
		},
		{
			name:          "no title - fallback to filename",
			content:       "<html><body>Just content</body></html>",
			path:          "/my_document.html",
			expectedTitle: "my document",
		},
		{
			name:          "empty title - fallback to filename",
			content:       "<title></title><body>Content</body>",
			path:          "/readme.html",
			expectedTitle: "readme",
		},
	}

	normaliser := New()
	ctx := context.Background()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := normaliser.Extract(ctx, tc.path, []byte(tc.content))
			require.NoError(t, err)
			assert.Equal(t, tc.expectedTitle, doc.Title)
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple paragraph",
			input:    "<p>Hello World</p>",
			expected: "Hello World",
		},
		{
			name:     "nested tags",
			input:    "<div><p><strong>Bold</strong> text</p></div>",
			expected: "Bold text",
		},
		{
			name:     "script removed",
			input:    "<p>Before</p><script>alert('evil');</script><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "style removed",
			input:    "<style>.foo { color: red; }</style><p>Content</p>",
			expected: "Content",
		},
		{
			name:     "noscript removed",
			input:    "<p>Content</p><noscript>No JS fallback</noscript>",
			expected: "Content",
		},
		{
			name:     "head removed",
			input:    "<head><meta charset='utf-8'><title>Title</title></head><body>Content</body>",
			expected: "Content",
		},
		{
			name:     "br to newline",
			input:    "Line 1<br>Line 2<br/>Line 3",
			expected: "Line 1\nLine 2\nLine 3",
		},
		{
			name:     "block elements create newlines",
			input:    "<div>Block 1</div><div>Block 2</div>",
			expected: "Block 1\nBlock 2",
		},
		{
			name:     "HTML entities decoded",
			input:    "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>",
			expected: "<tag> & \"quotes\"",
		},
		{
			name:     "comments removed",
			input:    "<p>Before</p><!-- comment --><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "list items",
			input:    "<ul><li>Item 1</li><li>Item 2</li></ul>",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "headings",
			input:    "<h1>Title</h1><h2>Subtitle</h2><p>Content</p>",
			expected: "Title\nSubtitle\nContent",
		},
		{
			name:     "links - text preserved",
			input:    `<a href="https://example.com">Click here</a>`,
			expected: "Click here",
		},
		{
			name:     "images removed",
			input:    `<p>See <img src="image.png" alt="Image"> here</p>`,
			expected: "See here",
		},
		{
			name:     "table",
			input:    "<table><tr><td>Cell 1</td><td>Cell 2</td></tr></table>",
			expected: "Cell 1Cell 2",
		},
		{
			name:     "svg removed",
			input:    `<p>Before</p><svg width="100"><circle cx="50"/></svg><p>After</p>`,
			expected: "Before\nAfter",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := stripHTML(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestText(t *testing.T) {
	got := Text("<ul><li>One &amp; two</li><li>  Three  </li></ul><script>x()</script>")

	assert.Equal(t, "One & two\nThree", got)
}
