package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SERCHA_RAG_"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedAPIKey   = "embedding.api_key"
)

// settingSpec binds a config key and its environment override to a field.
type settingSpec struct {
	key   string
	env   string
	field func(*domain.Settings) any
}

var settingSpecs = []settingSpec{
	{"chunk.target_tokens", "CHUNK_TARGET_TOKENS", func(s *domain.Settings) any { return &s.Chunk.TargetTokens }},
	{"chunk.chars_per_token", "CHUNK_CHARS_PER_TOKEN", func(s *domain.Settings) any { return &s.Chunk.CharsPerToken }},
	{"chunk.overlap", "CHUNK_OVERLAP", func(s *domain.Settings) any { return &s.Chunk.Overlap }},
	{"chunk.min_length", "CHUNK_MIN_LENGTH", func(s *domain.Settings) any { return &s.Chunk.MinLength }},
	{"ephemeral.ttl", "EPHEMERAL_TTL", func(s *domain.Settings) any { return &s.Ephemeral.TTL }},
	{"ephemeral.budget", "EPHEMERAL_BUDGET", func(s *domain.Settings) any { return &s.Ephemeral.Budget }},
	{"ephemeral.max_file_bytes", "EPHEMERAL_MAX_FILE_BYTES", func(s *domain.Settings) any { return &s.Ephemeral.MaxFileBytes }},
	{"ephemeral.sweep_interval", "EPHEMERAL_SWEEP_INTERVAL", func(s *domain.Settings) any { return &s.Ephemeral.SweepInterval }},
	{"ephemeral.build_timeout", "EPHEMERAL_BUILD_TIMEOUT", func(s *domain.Settings) any { return &s.Ephemeral.BuildTimeout }},
	{"ephemeral.cancel_orphaned_builds", "EPHEMERAL_CANCEL_ORPHANED_BUILDS", func(s *domain.Settings) any { return &s.Ephemeral.CancelOrphanedBuilds }},
	{"retrieval.top_k", "TOP_K", func(s *domain.Settings) any { return &s.Retrieval.TopK }},
	{"retrieval.embed_timeout", "EMBED_TIMEOUT", func(s *domain.Settings) any { return &s.Retrieval.EmbedTimeout }},
	{"retrieval.search_timeout", "SEARCH_TIMEOUT", func(s *domain.Settings) any { return &s.Retrieval.SearchTimeout }},
	{keyEmbedProvider, "EMBED_PROVIDER", func(s *domain.Settings) any { return &s.Embedding.Provider }},
	{"embedding.model", "EMBED_MODEL", func(s *domain.Settings) any { return &s.Embedding.Model }},
	{"embedding.base_url", "EMBED_BASE_URL", func(s *domain.Settings) any { return &s.Embedding.BaseURL }},
	{keyEmbedAPIKey, "EMBED_API_KEY", func(s *domain.Settings) any { return &s.Embedding.APIKey }},
	{"embedding.batch_size", "EMBED_BATCH_SIZE", func(s *domain.Settings) any { return &s.Embedding.BatchSize }},
	{"embedding.max_batch_tokens", "EMBED_MAX_BATCH_TOKENS", func(s *domain.Settings) any { return &s.Embedding.MaxBatchTokens }},
	{"embedding.requests_per_second", "EMBED_REQUESTS_PER_SECOND", func(s *domain.Settings) any { return &s.Embedding.RequestsPerSecond }},
	{"embedding.max_retries", "EMBED_MAX_RETRIES", func(s *domain.Settings) any { return &s.Embedding.MaxRetries }},
	{"durable.dsn", "DURABLE_DSN", func(s *domain.Settings) any { return &s.Durable.DSN }},
}

// SettingsService resolves settings from defaults, the config store and
// the environment, in increasing order of precedence.
type SettingsService struct {
	configStore       driven.ConfigStore
	lookupEnv         func(string) (string, bool)
	validateEmbedding func(context.Context, domain.EmbeddingSettings) error
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnvLookup replaces os.LookupEnv, mainly for tests.
func WithEnvLookup(lookup func(string) (string, bool)) SettingsOption {
	return func(s *SettingsService) {
		if lookup != nil {
			s.lookupEnv = lookup
		}
	}
}

// WithEmbeddingValidator sets the connectivity check run by
// ValidateEmbeddingConfig.
func WithEmbeddingValidator(validate func(context.Context, domain.EmbeddingSettings) error) SettingsOption {
	return func(s *SettingsService) {
		s.validateEmbedding = validate
	}
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the effective settings. Unparseable stored or environment
// values are ignored with a warning; the result must still validate.
func (s *SettingsService) Get() (domain.Settings, error) {
	settings, _ := s.resolve()
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// ValidateEmbeddingConfig checks the effective embedding settings and, when
// a validator is configured, that the provider answers.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if s.validateEmbedding == nil {
		return nil
	}
	if err := s.validateEmbedding(ctx, settings.Embedding); err != nil {
		return fmt.Errorf("%s embedding provider: %w", settings.Embedding.Provider, err)
	}
	return nil
}

// Show lists every setting with its effective value and source.
// API keys are masked.
func (s *SettingsService) Show() []domain.SettingEntry {
	settings, sources := s.resolve()

	entries := make([]domain.SettingEntry, 0, len(settingSpecs))
	for _, spec := range settingSpecs {
		value := formatValue(spec.field(&settings))
		if spec.key == keyEmbedAPIKey {
			value = maskSecret(value)
		}
		entries = append(entries, domain.SettingEntry{
			Key:    spec.key,
			Env:    EnvPrefix + spec.env,
			Value:  value,
			Source: sources[spec.key],
		})
	}
	return entries
}

// Set parses value for key, checks the resulting settings still validate,
// and persists it to the config store.
func (s *SettingsService) Set(key, value string) error {
	spec, ok := findSpec(key)
	if !ok {
		return domain.NewInputError(key, "unknown setting", nil)
	}

	settings, _ := s.resolve()
	field := spec.field(&settings)
	if err := assign(field, value); err != nil {
		return domain.NewInputError(key, err.Error(), nil)
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, storedValue(field)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the recognised setting keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingSpecs))
	for i, spec := range settingSpecs {
		keys[i] = spec.key
	}
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// resolve layers the config store and the environment over the defaults.
func (s *SettingsService) resolve() (domain.Settings, map[string]string) {
	settings := domain.DefaultSettings()
	sources := make(map[string]string, len(settingSpecs))

	for _, spec := range settingSpecs {
		sources[spec.key] = domain.SourceDefault
		field := spec.field(&settings)

		if raw, ok := s.configStore.Get(spec.key); ok {
			if err := assign(field, raw); err != nil {
				logger.Warn("settings: ignoring %s from %s: %v", spec.key, s.configStore.Path(), err)
			} else {
				sources[spec.key] = domain.SourceFile
			}
		}

		if raw, ok := s.lookupEnv(EnvPrefix + spec.env); ok && raw != "" {
			if err := assign(field, raw); err != nil {
				logger.Warn("settings: ignoring %s%s: %v", EnvPrefix, spec.env, err)
			} else {
				sources[spec.key] = domain.SourceEnv
			}
		}
	}

	// The provider's conventional variable is honoured as a last resort.
	if settings.Embedding.APIKey == "" && settings.Embedding.Provider == domain.EmbeddingProviderOpenAI {
		if key, ok := s.lookupEnv("OPENAI_API_KEY"); ok && key != "" {
			settings.Embedding.APIKey = key
			sources[keyEmbedAPIKey] = domain.SourceEnv
		}
	}

	return settings, sources
}

func findSpec(key string) (settingSpec, bool) {
	for _, spec := range settingSpecs {
		if spec.key == key {
			return spec, true
		}
	}
	return settingSpec{}, false
}

// assign parses raw into the field ptr points to. raw is a string from the
// environment or the CLI, or a decoded TOML value.
func assign(ptr any, raw any) error {
	str := strings.TrimSpace(rawString(raw))

	switch p := ptr.(type) {
	case *int:
		n, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", str)
		}
		*p = n
	case *int64:
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", str)
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", str)
		}
		*p = f
	case *bool:
		b, err := strconv.ParseBool(str)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", str)
		}
		*p = b
	case *time.Duration:
		d, err := parseDuration(str)
		if err != nil {
			return err
		}
		*p = d
	case *domain.EmbeddingProvider:
		provider := domain.EmbeddingProvider(strings.ToLower(str))
		if !provider.IsValid() {
			return fmt.Errorf("unknown embedding provider %q", str)
		}
		*p = provider
	case *string:
		*p = str
	default:
		return fmt.Errorf("unsupported setting type %T", ptr)
	}
	return nil
}

// rawString renders a stored value for parsing. Integral floats are
// printed without an exponent.
func rawString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// parseDuration accepts Go durations ("90s", "30m") and bare seconds.
func parseDuration(str string) (time.Duration, error) {
	if secs, err := strconv.Atoi(str); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("expected a duration such as 30s or 5m, got %q", str)
	}
	return d, nil
}

// storedValue converts a field to the value written to the config store.
func storedValue(ptr any) any {
	switch p := ptr.(type) {
	case *int:
		return *p
	case *int64:
		return *p
	case *float64:
		return *p
	case *bool:
		return *p
	case *time.Duration:
		return p.String()
	case *domain.EmbeddingProvider:
		return p.String()
	case *string:
		return *p
	default:
		return nil
	}
}

func formatValue(ptr any) string {
	switch v := storedValue(ptr).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
