package cli

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/logger"
)

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run", runCmd.Use)
	assert.NotNil(t, runCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, runCmd.Flags().Lookup("every"))
}

func TestRunCmd_FirstRunAddsEverything(t *testing.T) {
	factory, _, logs := setupCLI(t)

	out, err := execute(t, "run")

	require.NoError(t, err)
	assert.Contains(t, out, "Added: 2, Updated: 0, Skipped: 0, Deleted: 0, Errors: 0")
	assert.Equal(t, 2, factory.index.Len())
	assert.Equal(t, 1, factory.closed)

	entries, err := os.ReadDir(logs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), logger.JobLogPrefix))
	assert.Contains(t, out, "Job log: ")
}

func TestRunCmd_SecondRunSkips(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "run")
	require.NoError(t, err)
	out, err := execute(t, "run")

	require.NoError(t, err)
	assert.Contains(t, out, "Added: 0, Updated: 0, Skipped: 2, Deleted: 0, Errors: 0")
}

func TestRunCmd_DryRun(t *testing.T) {
	factory, _, _ := setupCLI(t)

	out, err := execute(t, "run", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "[dry run] Added: 2, Updated: 0, Skipped: 0, Deleted: 0, Errors: 0")
	assert.Contains(t, out, "no store was changed")
	assert.Zero(t, factory.index.Len())
	assert.Zero(t, factory.meta.Len())
}

func TestRunCmd_CorpusFailureIsFatal(t *testing.T) {
	factory, _, _ := setupCLI(t)
	factory.corpus.err = errBoom

	out, err := execute(t, "run")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorpusUnavailable)
	assert.Contains(t, out, "Added: 0, Updated: 0, Skipped: 0, Deleted: 0, Errors: 0")
}

func TestRunCmd_InvalidSettings(t *testing.T) {
	_, store, _ := setupCLI(t)
	require.NoError(t, store.Set("openai.api_key", ""))

	_, err := execute(t, "run")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestRunCmd_FactoryError(t *testing.T) {
	factory, _, _ := setupCLI(t)
	factory.reconcilerErr = errBoom

	_, err := execute(t, "run")

	assert.ErrorIs(t, err, errBoom)
}

func TestRunCmd_NotConfigured(t *testing.T) {
	setupCLI(t)
	serviceFactory = nil

	_, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRunCmd_ScheduleStopsOnCancel(t *testing.T) {
	factory, _, _ := setupCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetches := 0
	factory.corpus.onFetch = func() {
		fetches++
		cancel()
	}

	out, err := executeContext(t, ctx, "run", "--every", "1h")

	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Contains(t, out, "Running every 1h0m0s")
	assert.Contains(t, out, "Stopped.")
}

func TestRunCmd_ScheduleAfterEarlierCommandsStopsOnCancel(t *testing.T) {
	factory, _, _ := setupCLI(t)
	_, err := execute(t, "run")
	require.NoError(t, err)
	_, err = execute(t, "status")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	factory.corpus.onFetch = cancel

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeContext(t, ctx, "run", "--every", "1h")
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.out, "Stopped.")
	case <-time.After(10 * time.Second):
		t.Fatal("scheduled run ignored the cancelled context")
	}
}

func TestRunCmd_ScheduleUsesConfiguredInterval(t *testing.T) {
	factory, store, _ := setupCLI(t)
	require.NoError(t, store.Set("sync.interval_minutes", 90))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	factory.corpus.onFetch = cancel

	out, err := executeContext(t, ctx, "run", "--schedule")

	require.NoError(t, err)
	assert.Contains(t, out, "Running every 1h30m0s")
}
