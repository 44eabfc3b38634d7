package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, overridden by the
	// config file, overridden by the environment.
	Get() (domain.Settings, error)

	// Set persists a single setting by its dotted key.
	// The value is parsed according to the key's type.
	Set(key, value string) error

	// Show lists every setting with its effective value and source.
	// Secrets are masked.
	Show() []domain.SettingEntry

	// Keys lists the recognised setting keys in display order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateEmbeddingConfig checks that the configured embedding
	// provider can be reached.
	ValidateEmbeddingConfig(ctx context.Context) error
}
