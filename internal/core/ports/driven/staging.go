package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// ContentStager holds canonical content locally for the lifetime of one run.
type ContentStager interface {
	// Stage writes the document's content and returns a handle to it.
	Stage(ctx context.Context, doc *domain.CanonicalDocument) (string, error)

	// Open returns a reader over staged content.
	Open(handle string) (io.ReadCloser, error)

	// Release removes everything staged. Safe to call more than once.
	Release() error
}

// RunLock guarantees that at most one reconciliation run touches a
// corpus/store pair at a time.
type RunLock interface {
	// Acquire takes the lock or returns domain.ErrSyncInProgress.
	Acquire() error

	// Release drops the lock.
	Release() error
}
