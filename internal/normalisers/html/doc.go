// Package html provides a page extractor for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts,
// styles, and decoding entities. CSS page breaks start new pages.
package html
