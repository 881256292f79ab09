package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/core/services"
	"github.com/custodia-labs/kbsync/internal/normalisers/markdown"
)

// staticCorpus serves a fixed article list.
type staticCorpus struct {
	mu       sync.Mutex
	articles []domain.RawArticle
	err      error
	onFetch  func()
}

func (c *staticCorpus) FetchAll(_ context.Context) ([]domain.RawArticle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onFetch != nil {
		c.onFetch()
	}
	if c.err != nil {
		return nil, c.err
	}
	return append([]domain.RawArticle(nil), c.articles...), nil
}

// testFactory builds services over in-memory adapters. The stores outlive
// each command so consecutive commands see the same state.
type testFactory struct {
	corpus   *staticCorpus
	meta     *memory.MetadataStore
	index    *memory.ContentIndex
	runs     *memory.RunStore
	searcher *stubSearcher

	reconcilerErr error
	closed        int
}

func newTestFactory() *testFactory {
	return &testFactory{
		corpus: &staticCorpus{articles: []domain.RawArticle{
			{ID: 1, HTMLURL: "https://help.example.com/hc/en-us/articles/1-Getting-Started", Title: "Getting Started", Body: "<p>Hello</p>"},
			{ID: 2, HTMLURL: "https://help.example.com/hc/en-us/articles/2-Playlists", Title: "Playlists", Body: "<p>Make one</p>"},
		}},
		meta:     memory.NewMetadataStore(),
		index:    memory.NewContentIndex(),
		runs:     memory.NewRunStore(),
		searcher: &stubSearcher{},
	}
}

func (f *testFactory) Reconciler(_ context.Context, _ *domain.AppSettings) (driving.Reconciler, driving.RunHistory, io.Closer, error) {
	if f.reconcilerErr != nil {
		return nil, nil, nil, f.reconcilerErr
	}
	r, err := services.NewReconciler(services.Dependencies{
		Corpus:        f.corpus,
		Canonicaliser: markdown.New(),
		Stager:        memory.NewStager(),
		Metadata:      f.meta,
		Index:         f.index,
		Runs:          f.runs,
	}, services.SynchronizerConfig{Concurrency: 2, CallTimeout: 5 * time.Second})
	if err != nil {
		return nil, nil, nil, err
	}
	return r, r, f, nil
}

func (f *testFactory) RunHistory(_ *domain.AppSettings) (driving.RunHistory, io.Closer, error) {
	return runHistory{f.runs}, f, nil
}

func (f *testFactory) Search(_ *domain.AppSettings) (driving.SearchService, error) {
	return services.NewSearchService(f.searcher), nil
}

func (f *testFactory) Close() error {
	f.closed++
	return nil
}

type runHistory struct {
	runs *memory.RunStore
}

func (h runHistory) Last(ctx context.Context) (*domain.RunSummary, error) {
	return h.runs.LastRun(ctx)
}

func (h runHistory) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return h.runs.ListRuns(ctx, limit)
}

type stubSearcher struct {
	results []domain.SearchResult
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return s.results, s.err
}

var errBoom = errors.New("boom")

// setupCLI installs services over a fresh config and log directory and
// restores the previous ones when the test ends.
func setupCLI(t *testing.T) (*testFactory, *memory.ConfigStore, string) {
	t.Helper()
	store := memory.NewConfigStore()
	logs := t.TempDir()
	require.NoError(t, store.Set("openai.api_key", "sk-test-0123456789"))
	require.NoError(t, store.Set("openai.vector_store_id", "vs_test"))
	require.NoError(t, store.Set("paths.log_dir", logs))

	factory := newTestFactory()
	oldSettings, oldFactory := settingsService, serviceFactory
	settings := services.NewSettingsService(store).WithEnv(func(string) (string, bool) { return "", false })
	Configure(settings, factory)
	t.Cleanup(func() {
		settingsService, serviceFactory = oldSettings, oldFactory
	})
	return factory, store, logs
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	runDryRun, runEvery, runSchedule = false, 0, false
	statusLimit = 0
	searchLimit, searchJSON = 5, false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	// Cobra only hands the root context to subcommands that have none yet,
	// so each execution starts every command from ctx.
	setContextTree(rootCmd, ctx)

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func setContextTree(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContextTree(sub, ctx)
	}
}
