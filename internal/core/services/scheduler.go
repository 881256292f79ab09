package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler repeats reconciliation runs on a fixed interval.
// Runs never overlap: the next tick waits for the current run to finish.
type Scheduler struct {
	runner   driving.Reconciler
	interval time.Duration
	opts     domain.RunOptions

	// OnRun, when set, is called after every run.
	OnRun func(*domain.RunSummary, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler that runs runner every interval.
func NewScheduler(runner driving.Reconciler, interval time.Duration, opts domain.RunOptions) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		opts:     opts,
	}
}

// Start runs immediately, then once per interval. It blocks until Stop is
// called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	defer close(doneCh)

	logger.Info("Scheduler started, running every %s", s.interval)
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Stop shuts the scheduler down and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	return nil
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx, s.opts)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		logger.Warn("Scheduled run skipped: another run is in progress")
	case err != nil:
		logger.Error("Scheduled run failed: %v", err)
	}
	if s.OnRun != nil {
		s.OnRun(summary, err)
	}
}
