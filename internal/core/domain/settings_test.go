package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmbeddingProvider_IsValid tests valid and invalid providers
func TestEmbeddingProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider EmbeddingProvider
		expected bool
	}{
		{name: "ollama is valid", provider: EmbeddingProviderOllama, expected: true},
		{name: "openai is valid", provider: EmbeddingProviderOpenAI, expected: true},
		{name: "empty is invalid", provider: EmbeddingProvider(""), expected: false},
		{name: "unknown is invalid", provider: EmbeddingProvider("anthropic"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

// TestEmbeddingSettings_IsConfigured tests API key requirements
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: EmbeddingProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: EmbeddingProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: EmbeddingProviderOpenAI, APIKey: "sk-test"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

// TestBackendForDSN tests backend inference
func TestBackendForDSN(t *testing.T) {
	assert.Equal(t, DurableBackendMemory, BackendForDSN("memory:"))
	assert.Equal(t, DurableBackendPostgres, BackendForDSN("postgres://u:p@localhost/rag"))
	assert.Equal(t, DurableBackendPostgres, BackendForDSN("postgresql://localhost/rag"))
	assert.Equal(t, DurableBackendSQLite, BackendForDSN("/var/lib/rag/index.db"))
	assert.Equal(t, DurableBackendSQLite, DurableSettings{}.Backend())
}

// TestDefaultSettings_Valid tests that defaults pass validation
func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 2048, s.Chunk.TargetChars())
	assert.Equal(t, 200, s.Chunk.Overlap)
}

// TestSettings_Validate tests rejection of unusable values
func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"zero target", func(s *Settings) { s.Chunk.TargetTokens = 0 }, "chunk.target_tokens"},
		{"overlap too large", func(s *Settings) { s.Chunk.Overlap = 5000 }, "chunk.overlap must be smaller"},
		{"negative overlap", func(s *Settings) { s.Chunk.Overlap = -1 }, "chunk.overlap must not be negative"},
		{"zero ttl", func(s *Settings) { s.Ephemeral.TTL = 0 }, "ephemeral.ttl"},
		{"zero top k", func(s *Settings) { s.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"zero batch", func(s *Settings) { s.Embedding.BatchSize = 0 }, "embedding.batch_size"},
		{"bad provider", func(s *Settings) { s.Embedding.Provider = "cohere" }, "unknown embedding provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			err := s.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
