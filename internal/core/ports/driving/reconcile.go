package driving

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// Reconciler runs one synchronisation of the knowledge base against the corpus.
type Reconciler interface {
	// Run performs a full reconciliation run.
	// A non-nil error means the run aborted before any mutation or was
	// interrupted; per-item failures are reported in the summary only.
	Run(ctx context.Context, opts domain.RunOptions) (*domain.RunSummary, error)

	// Status returns the current progress of a running reconciliation.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus represents the current state of a reconciliation run.
type SyncStatus struct {
	// RunID identifies the run, empty when idle.
	RunID string

	// Running indicates if a run is currently in progress.
	Running bool

	// Phase names the step the run is in.
	Phase string

	// ItemsProcessed is the count of items applied so far.
	ItemsProcessed int

	// ItemsPending is the number of items classified for mutation.
	ItemsPending int

	// ErrorCount is the number of failed items so far.
	ErrorCount int
}

// RunHistory exposes recorded run summaries.
type RunHistory interface {
	// Last returns the most recent run.
	Last(ctx context.Context) (*domain.RunSummary, error)

	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
