package driving

import "github.com/custodia-labs/kbsync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file,
	// then environment overrides.
	Get() (*domain.AppSettings, error)

	// Set parses and stores a single setting by its dotted key.
	Set(key, value string) error

	// Keys returns every recognised setting key in sorted order.
	Keys() []string

	// Lookup returns the effective value of one key as text.
	Lookup(key string) (string, error)

	// Validate checks that the effective settings can drive a run.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
