package domain

import (
	"fmt"
	"sort"
	"time"
)

// Operation is the classification applied to a document during a run.
type Operation string

const (
	// OpUnchanged marks a document whose fingerprint did not change.
	OpUnchanged Operation = "unchanged"

	// OpUpdate marks a known key whose content changed.
	OpUpdate Operation = "update"

	// OpAdd marks a key not present in the previous snapshot.
	OpAdd Operation = "add"

	// OpDelete marks a key present before and absent now.
	OpDelete Operation = "delete"
)

// Snapshot is a keyed view of document fingerprints at one point in time.
// Records is only populated for snapshots loaded from the metadata store.
type Snapshot struct {
	// Fingerprints maps each key to its content fingerprint.
	Fingerprints map[DocumentKey]Fingerprint

	// Records maps each key to the full persisted record.
	Records map[DocumentKey]DocumentRecord
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Fingerprints: make(map[DocumentKey]Fingerprint),
		Records:      make(map[DocumentKey]DocumentRecord),
	}
}

// Has reports whether the key is part of the snapshot.
func (s Snapshot) Has(key DocumentKey) bool {
	_, ok := s.Fingerprints[key]
	return ok
}

// Len returns the number of keys in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Fingerprints)
}

// Keys returns the snapshot's key set in sorted order.
func (s Snapshot) Keys() []DocumentKey {
	keys := make([]DocumentKey, 0, len(s.Fingerprints))
	for k := range s.Fingerprints {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// SortKeys sorts keys in place.
func SortKeys(keys []DocumentKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

// Classification is the output of diffing two snapshots.
// The four lists are disjoint and each is sorted.
type Classification struct {
	Unchanged []DocumentKey
	ToUpdate  []DocumentKey
	ToAdd     []DocumentKey
	Deleted   []DocumentKey
}

// Total returns the number of classified keys.
func (c Classification) Total() int {
	return len(c.Unchanged) + len(c.ToUpdate) + len(c.ToAdd) + len(c.Deleted)
}

// Pending returns the number of keys that need a mutation.
func (c Classification) Pending() int {
	return len(c.ToUpdate) + len(c.ToAdd) + len(c.Deleted)
}

// Outcome is the result kind of one item mutation.
type Outcome int

const (
	// OutcomeApplied means the mutation succeeded.
	OutcomeApplied Outcome = iota

	// OutcomeFailed means the mutation failed and the item will be retried next run.
	OutcomeFailed

	// OutcomeSkipped means no mutation was needed.
	OutcomeSkipped

	// OutcomePlanned means the mutation would run but a dry run suppressed it.
	OutcomePlanned
)

// ItemResult is the typed result of applying one classification to one key.
type ItemResult struct {
	// Key is the affected document.
	Key DocumentKey

	// Op is the classification applied.
	Op Operation

	// Outcome reports success or failure.
	Outcome Outcome

	// ContentID is the live content id after the mutation, if any.
	ContentID string

	// Err is set when Outcome is OutcomeFailed.
	Err error

	// Discrepancy is set when the item succeeded but left content behind
	// in the index that could not be removed.
	Discrepancy error
}

// AsError returns the failure as an *ItemError, or nil if the item did not fail.
func (r ItemResult) AsError() error {
	if r.Outcome != OutcomeFailed {
		return nil
	}
	return &ItemError{Key: r.Key, Op: r.Op, Err: r.Err}
}

// ItemIssue is a reportable per-item error or discrepancy.
type ItemIssue struct {
	Key     DocumentKey `json:"key"`
	Op      Operation   `json:"op"`
	Message string      `json:"message"`
}

// String formats the issue for logs.
func (i ItemIssue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Op, i.Key, i.Message)
}

// RunOptions controls a single reconciliation run.
type RunOptions struct {
	// DryRun classifies and reports without mutating either store.
	DryRun bool
}

// RunSummary is the outcome of one reconciliation run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	// Fetched is the number of documents in the new snapshot.
	Fetched int `json:"fetched"`

	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`

	// Errors lists items that failed and will be retried next run.
	Errors []ItemIssue `json:"errors,omitempty"`

	// Discrepancies lists items that succeeded but left indexed content behind.
	Discrepancies []ItemIssue `json:"discrepancies,omitempty"`

	// Fatal is the run-aborting error message, if any.
	Fatal string `json:"fatal,omitempty"`
}

// Record folds one item result into the summary counts. Planned items of a
// dry run count as the operation they would perform.
func (s *RunSummary) Record(r ItemResult) {
	if r.Discrepancy != nil {
		s.Discrepancies = append(s.Discrepancies, ItemIssue{Key: r.Key, Op: r.Op, Message: r.Discrepancy.Error()})
	}
	if r.Outcome == OutcomeFailed {
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		s.Errors = append(s.Errors, ItemIssue{Key: r.Key, Op: r.Op, Message: msg})
		return
	}
	switch r.Op {
	case OpUnchanged:
		s.Skipped++
	case OpUpdate:
		s.Updated++
	case OpAdd:
		s.Added++
	case OpDelete:
		s.Deleted++
	}
}

// Failed returns the number of items that failed.
func (s *RunSummary) Failed() int {
	return len(s.Errors)
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Line returns the one-line summary printed at the end of every run.
func (s *RunSummary) Line() string {
	return fmt.Sprintf("Added: %d, Updated: %d, Skipped: %d, Deleted: %d, Errors: %d",
		s.Added, s.Updated, s.Skipped, s.Deleted, len(s.Errors))
}
