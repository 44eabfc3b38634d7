package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	retrieval   *domain.Retrieval
	stats       domain.IndexStats
	attachments []domain.EphemeralEntryInfo
	err         error

	gotQuery    string
	gotRefs     []string
	gotTopK     int
	invalidated []string
	clearCalls  int
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, query string, refs []string, topK int,
) (*domain.Retrieval, error) {
	m.gotQuery, m.gotRefs, m.gotTopK = query, refs, topK
	if m.err != nil {
		return nil, m.err
	}
	if m.retrieval == nil {
		return &domain.Retrieval{RequestID: "req-empty"}, nil
	}
	return m.retrieval, nil
}

func (m *mockRetrievalService) InvalidateEphemeral(ref string) error {
	m.invalidated = append(m.invalidated, ref)
	return m.err
}

func (m *mockRetrievalService) ClearAllEphemeral() {
	m.clearCalls++
}

func (m *mockRetrievalService) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}

func (m *mockRetrievalService) Attachments() []domain.EphemeralEntryInfo {
	return m.attachments
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	reports []domain.IngestReport
	err     error
}

func (m *mockIngestService) IndexFile(_ context.Context, ref string) (domain.IngestReport, error) {
	return domain.IngestReport{Source: ref}, m.err
}

func (m *mockIngestService) IndexFiles(_ context.Context, _ []string) ([]domain.IngestReport, error) {
	return m.reports, m.err
}

func (m *mockIngestService) RemoveSource(_ context.Context, _ string) error {
	return m.err
}

// mockContextBuilder returns a fixed context.
type mockContextBuilder struct{}

func (mockContextBuilder) BuildContext(r *domain.Retrieval) (string, bool) {
	if r.Empty() {
		return "nothing found", false
	}
	return "context with [1]", true
}

// mockSourceLister lists fixed sources.
type mockSourceLister struct {
	sources []string
	err     error
}

func (m *mockSourceLister) Sources(_ context.Context) ([]string, error) {
	return m.sources, m.err
}

func sampleRetrieval() *domain.Retrieval {
	return &domain.Retrieval{
		RequestID: "req-1",
		Results: []domain.SearchResult{
			{
				Chunk:     domain.Chunk{Source: "/tmp/notes.txt", Title: "Notes", Page: 2, Text: "Attached passage."},
				Distance:  0.25,
				Ephemeral: true,
			},
			{
				Chunk:    domain.Chunk{Source: "/docs/guide.md", Title: "Guide", Page: 1, Text: "Durable passage."},
				Distance: 0.5,
			},
		},
		Citations: []domain.Citation{
			{Marker: 1, SourceTitle: "Notes", Source: "/tmp/notes.txt", Page: 2},
			{Marker: 2, SourceTitle: "Guide", Source: "/docs/guide.md", Page: 1},
		},
	}
}
