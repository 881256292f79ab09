package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func TestStatusCmd_NoRuns(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestStatusCmd_ShowsLastRun(t *testing.T) {
	setupCLI(t)
	_, err := execute(t, "run")
	require.NoError(t, err)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Run:")
	assert.Contains(t, out, "Fetched:  2")
	assert.Contains(t, out, "Added: 2")
}

func TestStatusCmd_ListsRuns(t *testing.T) {
	setupCLI(t)
	_, err := execute(t, "run", "--dry-run")
	require.NoError(t, err)
	_, err = execute(t, "run")
	require.NoError(t, err)

	out, err := execute(t, "status", "--limit", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "DRY RUN")
	assert.Contains(t, out, "OK")
}

func TestLogsCmds(t *testing.T) {
	_, _, logs := setupCLI(t)
	name := "job_log_2025-03-01_12-00-00.txt"
	require.NoError(t, os.WriteFile(filepath.Join(logs, name), []byte("Total articles fetched: 2\n"), 0o644))

	out, err := execute(t, "logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, name)

	out, err = execute(t, "logs", "show", name)
	require.NoError(t, err)
	assert.Contains(t, out, "Total articles fetched: 2")

	out, err = execute(t, "logs", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Total articles fetched: 2")

	_, err = execute(t, "logs", "show", "../config.toml")
	assert.Error(t, err)
}

func TestLogsCmd_Empty(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "logs", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No job logs")
}

func TestSearchCmd(t *testing.T) {
	factory, _, _ := setupCLI(t)
	factory.searcher.results = []domain.SearchResult{
		{ContentID: "file-1", Name: "playlists.md", Score: 0.87, Text: "Make   one\nnow"},
	}

	out, err := execute(t, "search", "playlist")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] playlists.md (0.87)")
	assert.Contains(t, out, "Make one now")

	out, err = execute(t, "search", "playlist", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"content_id": "file-1"`)
}

func TestSearchCmd_NoResults(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "search", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_Error(t *testing.T) {
	factory, _, _ := setupCLI(t)
	factory.searcher.err = errBoom

	_, err := execute(t, "search", "q")

	assert.ErrorIs(t, err, errBoom)
}

func TestConfigCmds(t *testing.T) {
	_, store, _ := setupCLI(t)

	out, err := execute(t, "config", "set", "sync.concurrency", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "sync.concurrency updated.")
	assert.Equal(t, 9, store.GetInt("sync.concurrency"))

	out, err = execute(t, "config", "get", "sync.concurrency")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)

	out, err = execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "openai.vector_store_id")
	assert.Contains(t, out, "vs_test")
	assert.NotContains(t, out, "sk-test-0123456789")

	_, err = execute(t, "config", "set", "sync.concurrency", "lots")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err = execute(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is complete.")
}

func TestSnippetOf(t *testing.T) {
	assert.Equal(t, "a b c", snippetOf(" a\n b\t c ", 10))
	assert.Equal(t, "abc...", snippetOf("abcdef", 3))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ABORTED  ", outcome(&domain.RunSummary{Fatal: "x"}))
	assert.Equal(t, "DRY RUN  ", outcome(&domain.RunSummary{DryRun: true}))
	assert.Equal(t, "PARTIAL  ", outcome(&domain.RunSummary{Errors: []domain.ItemIssue{{}}}))
	assert.Equal(t, "OK       ", outcome(&domain.RunSummary{}))
}
