package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates another reconciliation run holds the lock.
	ErrSyncInProgress = errors.New("sync in progress")

	// Run-aborting errors.

	// ErrCorpusUnavailable indicates the corpus could not be fetched in full.
	ErrCorpusUnavailable = errors.New("corpus unavailable")

	// ErrSnapshotUnavailable indicates the previous state could not be read.
	// No mutation is attempted without a complete snapshot.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// ErrStagingFailed indicates the new-document set could not be built.
	ErrStagingFailed = errors.New("staging failed")

	// Per-item errors.

	// ErrContentIndex indicates the content index rejected a call.
	ErrContentIndex = errors.New("content index error")

	// ErrMetadataStore indicates the metadata store rejected a call.
	ErrMetadataStore = errors.New("metadata store error")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ItemError records a failed mutation for one document.
type ItemError struct {
	// Key is the affected document.
	Key DocumentKey

	// Op is the classification being applied when the failure happened.
	Op Operation

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ItemError) Unwrap() error {
	return e.Err
}
