package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCorpusBaseURL   = "corpus.base_url"
	keyCorpusLocale    = "corpus.locale"
	keyCorpusPerPage   = "corpus.per_page"
	keyCorpusRate      = "corpus.requests_per_second"
	keyOpenAIAPIKey    = "openai.api_key"
	keyOpenAIStoreID   = "openai.vector_store_id"
	keyOpenAIBaseURL   = "openai.base_url"
	keyMetadataBackend = "metadata.backend"
	keyMetadataTable   = "metadata.table"
	keySupabaseURL     = "supabase.url"
	keySupabaseKey     = "supabase.key"
	keySyncConcurrency = "sync.concurrency"
	keySyncTimeout     = "sync.timeout_seconds"
	keySyncRate        = "sync.requests_per_second"
	keySyncInterval    = "sync.interval_minutes"
	keyPathsDataDir    = "paths.data_dir"
	keyPathsStagingDir = "paths.staging_dir"
	keyPathsLogDir     = "paths.log_dir"
)

// envPrefix prefixes the environment variable of every key.
const envPrefix = "KBSYNC_"

// settingKind says how a setting's text value is parsed.
type settingKind int

const (
	settingKindString settingKind = iota
	settingKindInt
	settingKindFloat
	settingKindSecret
)

// settingKinds lists every recognised key.
var settingKinds = map[string]settingKind{
	keyCorpusBaseURL:   settingKindString,
	keyCorpusLocale:    settingKindString,
	keyCorpusPerPage:   settingKindInt,
	keyCorpusRate:      settingKindFloat,
	keyOpenAIAPIKey:    settingKindSecret,
	keyOpenAIStoreID:   settingKindString,
	keyOpenAIBaseURL:   settingKindString,
	keyMetadataBackend: settingKindString,
	keyMetadataTable:   settingKindString,
	keySupabaseURL:     settingKindString,
	keySupabaseKey:     settingKindSecret,
	keySyncConcurrency: settingKindInt,
	keySyncTimeout:     settingKindInt,
	keySyncRate:        settingKindFloat,
	keySyncInterval:    settingKindInt,
	keyPathsDataDir:    settingKindString,
	keyPathsStagingDir: settingKindString,
	keyPathsLogDir:     settingKindString,
}

// wellKnownEnv maps the conventional environment variables onto keys.
// They are checked after the KBSYNC_ form of the same key.
var wellKnownEnv = map[string]string{
	keyOpenAIAPIKey:  "OPENAI_API_KEY",
	keyOpenAIStoreID: "VECTOR_STORE_ID",
	keySupabaseURL:   "SUPABASE_URL",
	keySupabaseKey:   "SUPABASE_KEY",
}

// SettingsService resolves settings from defaults, the config store and
// the environment, in that order of increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service reading the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup. Used by tests.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	s.lookupEnv = lookup
	return s
}

// Get retrieves the effective settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	perPage, err := s.getInt(keyCorpusPerPage, d.Corpus.PerPage)
	if err != nil {
		return nil, err
	}
	corpusRate, err := s.getFloat(keyCorpusRate, d.Corpus.RequestsPerSecond)
	if err != nil {
		return nil, err
	}
	concurrency, err := s.getInt(keySyncConcurrency, d.Sync.Concurrency)
	if err != nil {
		return nil, err
	}
	timeout, err := s.getInt(keySyncTimeout, d.Sync.TimeoutSeconds)
	if err != nil {
		return nil, err
	}
	syncRate, err := s.getFloat(keySyncRate, d.Sync.RequestsPerSecond)
	if err != nil {
		return nil, err
	}
	interval, err := s.getInt(keySyncInterval, d.Sync.IntervalMinutes)
	if err != nil {
		return nil, err
	}

	return &domain.AppSettings{
		Corpus: domain.CorpusSettings{
			BaseURL:           s.getString(keyCorpusBaseURL, d.Corpus.BaseURL),
			Locale:            s.getString(keyCorpusLocale, d.Corpus.Locale),
			PerPage:           perPage,
			RequestsPerSecond: corpusRate,
		},
		OpenAI: domain.OpenAISettings{
			APIKey:        s.getString(keyOpenAIAPIKey, ""),
			VectorStoreID: s.getString(keyOpenAIStoreID, ""),
			BaseURL:       s.getString(keyOpenAIBaseURL, ""),
		},
		Metadata: domain.MetadataSettings{
			Backend: domain.MetadataBackend(strings.ToLower(s.getString(keyMetadataBackend, d.Metadata.Backend.String()))),
			Table:   s.getString(keyMetadataTable, d.Metadata.Table),
		},
		Supabase: domain.SupabaseSettings{
			URL: s.getString(keySupabaseURL, ""),
			Key: s.getString(keySupabaseKey, ""),
		},
		Sync: domain.SyncSettings{
			Concurrency:       concurrency,
			TimeoutSeconds:    timeout,
			RequestsPerSecond: syncRate,
			IntervalMinutes:   interval,
		},
		Paths: domain.PathSettings{
			DataDir:    s.getString(keyPathsDataDir, ""),
			StagingDir: s.getString(keyPathsStagingDir, ""),
			LogDir:     s.getString(keyPathsLogDir, ""),
		},
	}, nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case settingKindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer: %q", domain.ErrInvalidInput, key, value)
		}
		parsed = n
	case settingKindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number: %q", domain.ErrInvalidInput, key, value)
		}
		parsed = f
	default:
		parsed = value
	}

	if key == keyMetadataBackend && !domain.MetadataBackend(strings.ToLower(value)).IsValid() {
		return fmt.Errorf("%w: %s must be sqlite or supabase", domain.ErrInvalidInput, key)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised setting key in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the effective value of key as text. Secrets are masked.
func (s *SettingsService) Lookup(key string) (string, error) {
	kind, ok := settingKinds[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}

	var v string
	switch key {
	case keyCorpusBaseURL:
		v = settings.Corpus.BaseURL
	case keyCorpusLocale:
		v = settings.Corpus.Locale
	case keyCorpusPerPage:
		v = strconv.Itoa(settings.Corpus.PerPage)
	case keyCorpusRate:
		v = strconv.FormatFloat(settings.Corpus.RequestsPerSecond, 'g', -1, 64)
	case keyOpenAIAPIKey:
		v = settings.OpenAI.APIKey
	case keyOpenAIStoreID:
		v = settings.OpenAI.VectorStoreID
	case keyOpenAIBaseURL:
		v = settings.OpenAI.BaseURL
	case keyMetadataBackend:
		v = settings.Metadata.Backend.String()
	case keyMetadataTable:
		v = settings.Metadata.Table
	case keySupabaseURL:
		v = settings.Supabase.URL
	case keySupabaseKey:
		v = settings.Supabase.Key
	case keySyncConcurrency:
		v = strconv.Itoa(settings.Sync.Concurrency)
	case keySyncTimeout:
		v = strconv.Itoa(settings.Sync.TimeoutSeconds)
	case keySyncRate:
		v = strconv.FormatFloat(settings.Sync.RequestsPerSecond, 'g', -1, 64)
	case keySyncInterval:
		v = strconv.Itoa(settings.Sync.IntervalMinutes)
	case keyPathsDataDir:
		v = settings.Paths.DataDir
	case keyPathsStagingDir:
		v = settings.Paths.StagingDir
	case keyPathsLogDir:
		v = settings.Paths.LogDir
	}

	if kind == settingKindSecret {
		return MaskSecret(v), nil
	}
	return v, nil
}

// Validate checks that the effective settings can drive a run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// envName returns the KBSYNC_ variable for key, e.g. KBSYNC_SYNC_CONCURRENCY.
func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// env returns the environment override for key, if any.
func (s *SettingsService) env(key string) (string, bool) {
	if s.lookupEnv == nil {
		return "", false
	}
	if v, ok := s.lookupEnv(envName(key)); ok && v != "" {
		return v, true
	}
	if name, ok := wellKnownEnv[key]; ok {
		if v, ok := s.lookupEnv(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// getString retrieves a string setting with fallback to default.
func (s *SettingsService) getString(key, defaultVal string) string {
	if v, ok := s.env(key); ok {
		return v
	}
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

// getInt retrieves an integer setting with fallback to default.
func (s *SettingsService) getInt(key string, defaultVal int) (int, error) {
	if v, ok := s.env(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidSettings, envName(key), v)
		}
		return n, nil
	}
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetInt(key), nil
	}
	return defaultVal, nil
}

// getFloat retrieves a numeric setting with fallback to default.
func (s *SettingsService) getFloat(key string, defaultVal float64) (float64, error) {
	if v, ok := s.env(key); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidSettings, envName(key), v)
		}
		return f, nil
	}
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetFloat(key), nil
	}
	return defaultVal, nil
}
