package domain

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidSettings indicates the configuration cannot drive a run.
var ErrInvalidSettings = errors.New("invalid settings")

// MetadataBackend selects where document records are kept.
type MetadataBackend string

// Available metadata backends.
const (
	// MetadataBackendSQLite keeps records in a local SQLite database.
	MetadataBackendSQLite MetadataBackend = "sqlite"

	// MetadataBackendSupabase keeps records in a Supabase table.
	MetadataBackendSupabase MetadataBackend = "supabase"
)

// IsValid returns true if the backend is recognised.
func (b MetadataBackend) IsValid() bool {
	return b == MetadataBackendSQLite || b == MetadataBackendSupabase
}

// String returns the string representation.
func (b MetadataBackend) String() string {
	return string(b)
}

// CorpusSettings configures the help centre source.
type CorpusSettings struct {
	// BaseURL is the help centre scheme and host.
	BaseURL string

	// Locale restricts the fetch to one locale. Empty fetches all.
	Locale string

	// PerPage is the page size requested.
	PerPage int

	// RequestsPerSecond throttles page requests.
	RequestsPerSecond float64
}

// OpenAISettings configures the vector store the content is pushed to.
type OpenAISettings struct {
	APIKey        string
	VectorStoreID string

	// BaseURL overrides the API endpoint. Empty uses the public API.
	BaseURL string
}

// IsConfigured returns true if the content index can be reached.
func (o OpenAISettings) IsConfigured() bool {
	return o.APIKey != "" && o.VectorStoreID != ""
}

// MetadataSettings selects and configures the metadata store.
type MetadataSettings struct {
	Backend MetadataBackend

	// Table is the Supabase table holding one row per document.
	Table string
}

// SupabaseSettings holds Supabase project credentials.
type SupabaseSettings struct {
	URL string
	Key string
}

// IsConfigured returns true if the project can be reached.
func (s SupabaseSettings) IsConfigured() bool {
	return s.URL != "" && s.Key != ""
}

// SyncSettings bounds the synchroniser.
type SyncSettings struct {
	// Concurrency is the number of items applied in parallel.
	Concurrency int

	// TimeoutSeconds bounds every single store call.
	TimeoutSeconds int

	// RequestsPerSecond throttles store calls. Zero disables throttling.
	RequestsPerSecond float64

	// IntervalMinutes is the default period of scheduled runs.
	IntervalMinutes int
}

// PathSettings locates local state. Empty values take the adapters' defaults.
type PathSettings struct {
	DataDir    string
	StagingDir string
	LogDir     string
}

// AppSettings is the complete kbsync configuration.
type AppSettings struct {
	Corpus   CorpusSettings
	OpenAI   OpenAISettings
	Metadata MetadataSettings
	Supabase SupabaseSettings
	Sync     SyncSettings
	Paths    PathSettings
}

// DefaultAppSettings returns the settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Corpus: CorpusSettings{
			BaseURL:           "https://support.optisigns.com",
			PerPage:           100,
			RequestsPerSecond: 2,
		},
		Metadata: MetadataSettings{
			Backend: MetadataBackendSQLite,
			Table:   "scraped_articles",
		},
		Sync: SyncSettings{
			Concurrency:       4,
			TimeoutSeconds:    60,
			RequestsPerSecond: 5,
			IntervalMinutes:   24 * 60,
		},
	}
}

// Validate checks that the settings can drive a reconciliation run.
// All problems are reported together.
func (s *AppSettings) Validate() error {
	var errs []error

	if u, err := url.Parse(s.Corpus.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("corpus.base_url %q is not an absolute URL", s.Corpus.BaseURL))
	}
	if s.Corpus.PerPage < 1 || s.Corpus.PerPage > 100 {
		errs = append(errs, fmt.Errorf("corpus.per_page must be between 1 and 100, got %d", s.Corpus.PerPage))
	}
	if s.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is not set"))
	}
	if s.OpenAI.VectorStoreID == "" {
		errs = append(errs, errors.New("openai.vector_store_id is not set"))
	}

	switch s.Metadata.Backend {
	case MetadataBackendSQLite:
	case MetadataBackendSupabase:
		if !s.Supabase.IsConfigured() {
			errs = append(errs, errors.New("supabase.url and supabase.key are required for the supabase backend"))
		}
		if s.Metadata.Table == "" {
			errs = append(errs, errors.New("metadata.table is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("metadata.backend %q is not one of sqlite, supabase", s.Metadata.Backend))
	}

	if s.Sync.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be positive, got %d", s.Sync.Concurrency))
	}
	if s.Sync.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("sync.timeout_seconds must be positive, got %d", s.Sync.TimeoutSeconds))
	}
	if s.Sync.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("sync.requests_per_second must not be negative, got %g", s.Sync.RequestsPerSecond))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}
