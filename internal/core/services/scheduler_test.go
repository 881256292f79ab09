package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

// countingReconciler implements driving.Reconciler for scheduler tests.
type countingReconciler struct {
	mu    sync.Mutex
	runs  int
	opts  []domain.RunOptions
	err   error
	delay time.Duration
}

func (c *countingReconciler) Run(_ context.Context, opts domain.RunOptions) (*domain.RunSummary, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	c.opts = append(c.opts, opts)
	if c.err != nil {
		return nil, c.err
	}
	return &domain.RunSummary{ID: "run"}, nil
}

func (c *countingReconciler) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Phase: PhaseIdle}, nil
}

func (c *countingReconciler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	rec := &countingReconciler{}
	s := NewScheduler(rec, 10*time.Millisecond, domain.RunOptions{DryRun: true})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, o := range rec.opts {
		assert.True(t, o.DryRun)
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	rec := &countingReconciler{}
	s := NewScheduler(rec, time.Hour, domain.RunOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.NoError(t, s.Stop())
}

func TestScheduler_FailedRunsKeepScheduling(t *testing.T) {
	rec := &countingReconciler{err: domain.ErrSyncInProgress}
	s := NewScheduler(rec, 10*time.Millisecond, domain.RunOptions{})

	var mu sync.Mutex
	var errs []error
	s.OnRun = func(_ *domain.RunSummary, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	go func() { _ = s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return rec.count() >= 2 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], domain.ErrSyncInProgress)
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(&countingReconciler{}, 0, domain.RunOptions{})
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingReconciler{}, time.Second, domain.RunOptions{})
	assert.NoError(t, s.Stop())
}
