// Package eml extracts text from saved email messages (RFC 5322).
package eml

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pages"
)

// Ensure Normaliser implements the interface.
var _ driven.PageExtractor = (*Normaliser)(nil)

// Extensions handled by the EML normaliser.
var Extensions = []string{".eml"}

// maxDepth bounds multipart nesting.
const maxDepth = 8

// Normaliser handles email messages.
type Normaliser struct{}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Supports reports whether path has an .eml extension.
func (n *Normaliser) Supports(path string) bool {
	return pages.HasExtension(path, Extensions...)
}

// Extract returns the message as a single page: the From, To, Date and
// Subject headers followed by the body. Plain text parts are preferred
// over HTML ones. The title is the subject, or the file name.
func (n *Normaliser) Extract(_ context.Context, path string, data []byte) (domain.Document, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return domain.Document{}, domain.NewInputError(path, "not an email message", err)
	}

	body, err := readBody(msg.Header.Get("Content-Type"), msg.Body, 0)
	if err != nil {
		return domain.Document{}, domain.NewInputError(path, "unreadable message body", err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))

	var text strings.Builder
	for _, h := range []struct{ name, value string }{
		{"From", decodeHeader(msg.Header.Get("From"))},
		{"To", decodeHeader(msg.Header.Get("To"))},
		{"Date", msg.Header.Get("Date")},
		{"Subject", subject},
	} {
		if h.value != "" {
			text.WriteString(h.name + ": " + h.value + "\n")
		}
	}
	text.WriteString("\n")
	text.WriteString(body)

	title := subject
	if title == "" {
		title = pages.TitleFromPath(path)
	}

	return domain.Document{
		Source: path,
		Title:  title,
		Pages:  []domain.Page{{Number: 1, Text: strings.TrimSpace(text.String())}},
	}, nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the raw header
// when it cannot be decoded.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// readBody returns the text of a message or part with the given
// Content-Type.
func readBody(contentType string, r io.Reader, depth int) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			return "", nil
		}
		return readMultipart(r, params["boundary"], depth+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	switch mediaType {
	case "text/html":
		return html.Text(string(data)), nil
	case "text/plain":
		return string(data), nil
	default:
		return "", nil
	}
}

// readMultipart joins the text parts of a multipart body, falling back to
// the HTML parts when there is no plain text.
func readMultipart(r io.Reader, boundary string, depth int) (string, error) {
	if boundary == "" {
		return "", nil
	}

	var plain, rich []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		contentType := part.Header.Get("Content-Type")
		text, err := readBody(contentType, part, depth)
		part.Close()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "text/html" {
			rich = append(rich, text)
		} else {
			plain = append(plain, text)
		}
	}

	if len(plain) > 0 {
		return strings.Join(plain, "\n"), nil
	}
	return strings.Join(rich, "\n"), nil
}
