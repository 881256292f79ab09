package driven

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// MetadataStore persists one DocumentRecord per logical document.
// Every operation is a single-item call; no multi-item transaction is assumed.
type MetadataStore interface {
	// ListAll returns every record. It is the snapshot read.
	ListAll(ctx context.Context) ([]domain.DocumentRecord, error)

	// Get retrieves the record for key.
	// Returns domain.ErrNotFound if the key has no record.
	Get(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error)

	// Insert creates a new record.
	// Returns domain.ErrAlreadyExists if the key already has one.
	Insert(ctx context.Context, rec domain.DocumentRecord) error

	// Update overwrites fingerprint, timestamp and content id for rec.Key.
	// Returns domain.ErrNotFound if the key has no record.
	Update(ctx context.Context, rec domain.DocumentRecord) error

	// Delete removes the record for key and returns it, so the caller can
	// clean up its content id.
	// Returns domain.ErrNotFound if the key has no record.
	Delete(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error)
}

// RunStore records run summaries.
type RunStore interface {
	// SaveRun stores or replaces a run summary.
	SaveRun(ctx context.Context, run domain.RunSummary) error

	// LastRun returns the most recent run.
	// Returns domain.ErrNotFound if no run has been recorded.
	LastRun(ctx context.Context) (*domain.RunSummary, error)

	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
