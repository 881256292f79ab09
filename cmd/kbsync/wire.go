package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/staging"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/supabase"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/vectorstore/openai"
	"github.com/custodia-labs/kbsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbsync/internal/connectors/helpcenter"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/core/services"
	"github.com/custodia-labs/kbsync/internal/normalisers/markdown"
)

// staleLockAge is how old a run lock must be before a new run takes it over.
const staleLockAge = 6 * time.Hour

var _ cli.ServiceFactory = (*factory)(nil)

// factory builds the production adapters from settings.
type factory struct{}

func (f *factory) Reconciler(_ context.Context, settings *domain.AppSettings) (driving.Reconciler, driving.RunHistory, io.Closer, error) {
	dataDir, err := dataDir(settings)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening local store: %w", err)
	}

	meta, err := metadataStore(settings, store)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	index, err := contentIndex(settings)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	lock := staging.NewFileLock(filepath.Join(dataDir, staging.LockFile))
	lock.StaleAfter = staleLockAge

	corpus := helpcenter.New(helpcenter.Config{
		BaseURL:           settings.Corpus.BaseURL,
		Locale:            settings.Corpus.Locale,
		PerPage:           settings.Corpus.PerPage,
		RequestsPerSecond: settings.Corpus.RequestsPerSecond,
	}, nil)

	r, err := services.NewReconciler(services.Dependencies{
		Corpus:        corpus,
		Canonicaliser: markdown.New(),
		Stager:        staging.NewFileStager(settings.Paths.StagingDir),
		Metadata:      meta,
		Index:         index,
		Runs:          store.RunStore(),
		Lock:          lock,
	}, synchronizerConfig(settings))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return r, r, store, nil
}

func (f *factory) RunHistory(settings *domain.AppSettings) (driving.RunHistory, io.Closer, error) {
	dataDir, err := dataDir(settings)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store: %w", err)
	}
	return runHistory{runs: store.RunStore()}, store, nil
}

func (f *factory) Search(settings *domain.AppSettings) (driving.SearchService, error) {
	index, err := contentIndex(settings)
	if err != nil {
		return nil, err
	}
	return services.NewSearchService(index), nil
}

// runHistory serves recorded runs without building a reconciler.
type runHistory struct {
	runs driven.RunStore
}

func (h runHistory) Last(ctx context.Context) (*domain.RunSummary, error) {
	return h.runs.LastRun(ctx)
}

func (h runHistory) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return h.runs.ListRuns(ctx, limit)
}

// metadataStore picks the configured backend. Run history always stays local.
func metadataStore(settings *domain.AppSettings, local *sqlite.Store) (driven.MetadataStore, error) {
	switch settings.Metadata.Backend {
	case domain.MetadataBackendSupabase:
		store, err := supabase.NewStore(supabase.Config{
			URL:   settings.Supabase.URL,
			Key:   settings.Supabase.Key,
			Table: settings.Metadata.Table,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case domain.MetadataBackendSQLite, "":
		return local.MetadataStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown metadata backend %q", domain.ErrInvalidSettings, settings.Metadata.Backend)
	}
}

func contentIndex(settings *domain.AppSettings) (*openai.ContentIndex, error) {
	if !settings.OpenAI.IsConfigured() {
		return nil, errors.New("OpenAI is not configured: set OPENAI_API_KEY and VECTOR_STORE_ID")
	}
	return openai.NewContentIndex(openai.Config{
		APIKey:        settings.OpenAI.APIKey,
		VectorStoreID: settings.OpenAI.VectorStoreID,
		BaseURL:       settings.OpenAI.BaseURL,
	})
}

func synchronizerConfig(settings *domain.AppSettings) services.SynchronizerConfig {
	cfg := services.DefaultSynchronizerConfig()
	if settings.Sync.Concurrency > 0 {
		cfg.Concurrency = settings.Sync.Concurrency
	}
	if settings.Sync.TimeoutSeconds > 0 {
		cfg.CallTimeout = time.Duration(settings.Sync.TimeoutSeconds) * time.Second
	}
	cfg.RequestsPerSecond = settings.Sync.RequestsPerSecond
	return cfg
}

// dataDir returns the configured data directory or ~/.kbsync/data.
func dataDir(settings *domain.AppSettings) (string, error) {
	if settings.Paths.DataDir != "" {
		return settings.Paths.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".kbsync", "data"), nil
}
