package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// EmbeddingProvider identifies an embedding service provider.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderOpenAI is the OpenAI API or a compatible server.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderOllama, EmbeddingProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	case EmbeddingProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns every supported provider in display order.
func AllEmbeddingProviders() []EmbeddingProvider {
	return []EmbeddingProvider{EmbeddingProviderOllama, EmbeddingProviderOpenAI}
}

// DefaultEmbeddingModels returns the suggested model for each provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		EmbeddingProviderOllama: "nomic-embed-text",
		EmbeddingProviderOpenAI: "text-embedding-3-small",
	}
}

// DurableBackend identifies the storage engine behind the durable index.
type DurableBackend string

// Available durable backends.
const (
	// DurableBackendMemory keeps records in process memory only.
	DurableBackendMemory DurableBackend = "memory"

	// DurableBackendSQLite stores records in a local SQLite file.
	DurableBackendSQLite DurableBackend = "sqlite"

	// DurableBackendPostgres stores records in PostgreSQL with pgvector.
	DurableBackendPostgres DurableBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b DurableBackend) IsValid() bool {
	switch b {
	case DurableBackendMemory, DurableBackendSQLite, DurableBackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b DurableBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b DurableBackend) Description() string {
	switch b {
	case DurableBackendMemory:
		return "In-memory (not persisted)"
	case DurableBackendSQLite:
		return "SQLite (local file)"
	case DurableBackendPostgres:
		return "PostgreSQL + pgvector"
	default:
		return unknownDescription
	}
}

// BackendForDSN infers the backend from a DSN.
// "memory:" selects memory, postgres URLs select postgres,
// and anything else is treated as a SQLite file path.
func BackendForDSN(dsn string) DurableBackend {
	switch {
	case dsn == "memory:" || dsn == "memory":
		return DurableBackendMemory
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DurableBackendPostgres
	default:
		return DurableBackendSQLite
	}
}

// ChunkSettings controls how documents are split.
type ChunkSettings struct {
	// TargetTokens is the approximate chunk size in tokens.
	TargetTokens int

	// CharsPerToken converts the token budget to characters.
	CharsPerToken int

	// Overlap is the number of characters repeated between consecutive chunks.
	Overlap int

	// MinLength drops chunks shorter than this many characters.
	MinLength int
}

// TargetChars returns the chunk budget in characters.
func (c ChunkSettings) TargetChars() int {
	return c.TargetTokens * c.CharsPerToken
}

// EphemeralSettings controls the per-request attachment cache.
type EphemeralSettings struct {
	// TTL is the sliding lifetime of an unused entry.
	TTL time.Duration

	// Budget is the number of final results reserved for attachments.
	Budget int

	// MaxFileBytes rejects larger attachments before any work.
	MaxFileBytes int64

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration

	// BuildTimeout bounds a single build, independent of any waiter.
	BuildTimeout time.Duration

	// CancelOrphanedBuilds cancels a build once its last waiter gives up.
	// When false the build completes and populates the cache.
	CancelOrphanedBuilds bool
}

// RetrievalSettings controls the retrieve call.
type RetrievalSettings struct {
	// TopK is the default total result budget.
	TopK int

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration

	// SearchTimeout bounds the durable search call.
	SearchTimeout time.Duration
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the maximum number of texts per upstream call.
	BatchSize int

	// MaxBatchTokens is the approximate token ceiling per upstream call.
	MaxBatchTokens int

	// RequestsPerSecond paces upstream calls. Zero disables pacing.
	RequestsPerSecond float64

	// MaxRetries is the number of retries for retryable failures.
	MaxRetries int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// DurableSettings locates the durable index.
type DurableSettings struct {
	// DSN is "memory:", a postgres URL, or a SQLite file path.
	// Empty selects the default SQLite file.
	DSN string
}

// Backend returns the backend selected by the DSN.
func (d DurableSettings) Backend() DurableBackend {
	if d.DSN == "" {
		return DurableBackendSQLite
	}
	return BackendForDSN(d.DSN)
}

// Settings is the complete runtime configuration.
type Settings struct {
	Chunk     ChunkSettings
	Ephemeral EphemeralSettings
	Retrieval RetrievalSettings
	Embedding EmbeddingSettings
	Durable   DurableSettings
}

// DefaultSettings returns the configuration used when nothing is set.
func DefaultSettings() Settings {
	return Settings{
		Chunk: ChunkSettings{
			TargetTokens:  512,
			CharsPerToken: 4,
			Overlap:       200,
			MinLength:     50,
		},
		Ephemeral: EphemeralSettings{
			TTL:           30 * time.Minute,
			Budget:        4,
			MaxFileBytes:  20 << 20,
			SweepInterval: time.Minute,
			BuildTimeout:  2 * time.Minute,
		},
		Retrieval: RetrievalSettings{
			TopK:          8,
			EmbedTimeout:  30 * time.Second,
			SearchTimeout: 10 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Provider:          EmbeddingProviderOllama,
			Model:             "nomic-embed-text",
			BatchSize:         64,
			MaxBatchTokens:    8000,
			RequestsPerSecond: 5,
			MaxRetries:        3,
		},
	}
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	var problems []string
	if s.Chunk.TargetTokens <= 0 {
		problems = append(problems, "chunk.target_tokens must be positive")
	}
	if s.Chunk.CharsPerToken <= 0 {
		problems = append(problems, "chunk.chars_per_token must be positive")
	}
	if s.Chunk.Overlap < 0 {
		problems = append(problems, "chunk.overlap must not be negative")
	}
	if s.Chunk.TargetTokens > 0 && s.Chunk.CharsPerToken > 0 && s.Chunk.Overlap >= s.Chunk.TargetChars() {
		problems = append(problems, "chunk.overlap must be smaller than the chunk size")
	}
	if s.Chunk.MinLength < 0 {
		problems = append(problems, "chunk.min_length must not be negative")
	}
	if s.Ephemeral.TTL <= 0 {
		problems = append(problems, "ephemeral.ttl must be positive")
	}
	if s.Ephemeral.Budget < 0 {
		problems = append(problems, "ephemeral.budget must not be negative")
	}
	if s.Ephemeral.MaxFileBytes <= 0 {
		problems = append(problems, "ephemeral.max_file_bytes must be positive")
	}
	if s.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if s.Embedding.BatchSize <= 0 {
		problems = append(problems, "embedding.batch_size must be positive")
	}
	if s.Embedding.MaxBatchTokens <= 0 {
		problems = append(problems, "embedding.max_batch_tokens must be positive")
	}
	if s.Embedding.Provider != "" && !s.Embedding.Provider.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", s.Embedding.Provider))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// EmbeddingDimensions maps known embedding models to their vector sizes.
var EmbeddingDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Setting sources reported in SettingEntry.Source.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
)

// SettingEntry is one effective setting and where its value came from.
type SettingEntry struct {
	Key    string
	Env    string
	Value  string
	Source string
}
