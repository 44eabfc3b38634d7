package cli

import (
	"context"
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	retrieval *domain.Retrieval
	stats     domain.IndexStats
	err       error

	gotQuery string
	gotRefs  []string
	gotTopK  int
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

func (m *mockRetrievalService) InvalidateEphemeral(_ string) error { return m.err }

func (m *mockRetrievalService) ClearAllEphemeral() {}

func (m *mockRetrievalService) Attachments() []domain.EphemeralEntryInfo { return nil }

func (m *mockRetrievalService) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	err     error
	indexed []string
	removed []string
}

func (m *mockIngestService) IndexFile(_ context.Context, ref string) (domain.IngestReport, error) {
	m.indexed = append(m.indexed, ref)
	return domain.IngestReport{Source: ref, Title: ref, Pages: 1, Chunks: 2}, m.err
}

func (m *mockIngestService) IndexFiles(ctx context.Context, refs []string) ([]domain.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	reports := make([]domain.IngestReport, 0, len(refs))
	for _, ref := range refs {
		r, _ := m.IndexFile(ctx, ref)
		reports = append(reports, r)
	}
	return reports, nil
}

func (m *mockIngestService) RemoveSource(_ context.Context, ref string) error {
	m.removed = append(m.removed, ref)
	return m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	values      map[string]string
	getErr      error
	setErr      error
	validateErr error
	setCalls    []string
	validated   int
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{values: map[string]string{
		"retrieval.top_k":    "8",
		"embedding.provider": "ollama",
		"embedding.model":    "nomic-embed-text",
	}}
}

func (m *mockSettingsService) Get() (domain.Settings, error) {
	return domain.DefaultSettings(), m.getErr
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if _, ok := m.values[key]; !ok && key != apiKeySetting {
		return domain.NewInputError(key, "unknown setting", nil)
	}
	m.values[key] = value
	m.setCalls = append(m.setCalls, key)
	return nil
}

func (m *mockSettingsService) Show() []domain.SettingEntry {
	return []domain.SettingEntry{
		{Key: "retrieval.top_k", Env: "SERCHA_RAG_TOP_K", Value: m.values["retrieval.top_k"], Source: domain.SourceFile},
		{Key: "embedding.provider", Env: "SERCHA_RAG_EMBED_PROVIDER", Value: m.values["embedding.provider"], Source: domain.SourceDefault},
		{Key: "embedding.model", Env: "SERCHA_RAG_EMBED_MODEL", Value: m.values["embedding.model"], Source: domain.SourceEnv},
	}
}

func (m *mockSettingsService) Keys() []string {
	return []string{"retrieval.top_k", "embedding.provider", "embedding.model"}
}

func (m *mockSettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig(_ context.Context) error {
	m.validated++
	return m.validateErr
}

// mockContextBuilder returns a fixed context.
type mockContextBuilder struct{}

func (mockContextBuilder) BuildContext(r *domain.Retrieval) (string, bool) {
	if r.Empty() {
		return domain.NoInformationResponse, false
	}
	return "CONTEXT:\n[1] passage", true
}

// mockSourceLister lists fixed sources.
type mockSourceLister struct {
	sources []string
	err     error
}

func (m *mockSourceLister) Sources(_ context.Context) ([]string, error) {
	return m.sources, m.err
}

var errBoom = errors.New("boom")

func sampleRetrieval() *domain.Retrieval {
	return &domain.Retrieval{
		RequestID: "req-1",
		Results: []domain.SearchResult{
			{
				Chunk:     domain.Chunk{Source: "/tmp/contract.txt", Title: "Contract", Page: 3, Text: "The term ends in March."},
				Distance:  0.125,
				Ephemeral: true,
			},
			{
				Chunk:    domain.Chunk{Source: "/docs/handbook.md", Title: "Handbook", Page: 1, Text: "Renewals are annual."},
				Distance: 0.5,
			},
		},
		Citations: []domain.Citation{
			{Marker: 1, SourceTitle: "Contract", Source: "/tmp/contract.txt", Page: 3},
			{Marker: 2, SourceTitle: "Handbook", Source: "/docs/handbook.md", Page: 1},
		},
	}
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	retrieval *mockRetrievalService
	ingest    *mockIngestService
	settings  *mockSettingsService
	sources   *mockSourceLister
}

// setupTestServices installs mocks for every driving port and resets flag
// state. The returned func restores the previous state.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		retrieval: &mockRetrievalService{retrieval: sampleRetrieval(), stats: domain.IndexStats{TotalRecords: 10, DistinctSources: 2}},
		ingest:    &mockIngestService{},
		settings:  newMockSettingsService(),
		sources:   &mockSourceLister{sources: []string{"/docs/handbook.md", "/docs/faq.md"}},
	}
	SetServices(&Services{
		Retrieval: ts.retrieval,
		Ingest:    ts.ingest,
		Settings:  ts.settings,
		Context:   mockContextBuilder{},
		Sources:   ts.sources,
	})
	resetFlags()

	return ts, func() {
		SetServices(&Services{})
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}
}

func resetFlags() {
	askAttachments = nil
	askTopK = 0
	askJSON = false
	askContext = false
	statsJSON = false
	indexManifest = ""
	options = Options{}
	wire = nil
}
