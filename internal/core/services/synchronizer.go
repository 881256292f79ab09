package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Default synchroniser limits.
const (
	DefaultConcurrency       = 4
	DefaultCallTimeout       = 60 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 5
)

// SynchronizerConfig bounds how the synchroniser talks to the external stores.
type SynchronizerConfig struct {
	// Concurrency is the number of items applied in parallel.
	Concurrency int

	// CallTimeout bounds every single store call.
	CallTimeout time.Duration

	// RequestsPerSecond throttles store calls across all workers.
	// Zero or negative disables throttling.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int

	// Now returns the timestamp written to records. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSynchronizerConfig returns conservative limits.
func DefaultSynchronizerConfig() SynchronizerConfig {
	return SynchronizerConfig{
		Concurrency:       DefaultConcurrency,
		CallTimeout:       DefaultCallTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// Synchronizer applies a classification to the metadata store and the
// content index. Items are isolated from each other: a failure is recorded
// on its ItemResult and never stops the remaining items.
type Synchronizer struct {
	meta        driven.MetadataStore
	index       driven.ContentIndex
	stager      driven.ContentStager
	limiter     *rate.Limiter
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

// NewSynchronizer creates a synchroniser. Zero config values take defaults.
func NewSynchronizer(
	meta driven.MetadataStore,
	index driven.ContentIndex,
	stager driven.ContentStager,
	cfg SynchronizerConfig,
) *Synchronizer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Synchronizer{
		meta:        meta,
		index:       index,
		stager:      stager,
		concurrency: cfg.Concurrency,
		timeout:     cfg.CallTimeout,
		now:         cfg.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return s
}

// SyncPlan is everything the synchroniser needs for one run.
type SyncPlan struct {
	// Classification is the diff result.
	Classification domain.Classification

	// Previous is the snapshot loaded from the metadata store.
	Previous domain.Snapshot

	// Staged maps each key of the new snapshot to its staged document.
	Staged map[domain.DocumentKey]domain.StagedDocument

	// DryRun suppresses every mutation.
	DryRun bool
}

type syncTask struct {
	op  domain.Operation
	key domain.DocumentKey
}

// Apply runs every classified item through a bounded worker pool and returns
// one result per key, ordered by operation then key. onResult, when non-nil,
// is called once per item as results arrive; calls are serialised.
//
// If ctx is cancelled, items not yet started are reported as failed with the
// context error; the next run's diff picks them up again.
func (s *Synchronizer) Apply(ctx context.Context, plan SyncPlan, onResult func(domain.ItemResult)) []domain.ItemResult {
	c := plan.Classification
	results := make([]domain.ItemResult, 0, c.Total())

	var mu sync.Mutex
	emit := func(r domain.ItemResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
		if onResult != nil {
			onResult(r)
		}
	}

	for _, key := range c.Unchanged {
		emit(domain.ItemResult{Key: key, Op: domain.OpUnchanged, Outcome: domain.OutcomeSkipped})
	}

	tasks := make([]syncTask, 0, c.Pending())
	for _, key := range c.ToUpdate {
		tasks = append(tasks, syncTask{op: domain.OpUpdate, key: key})
	}
	for _, key := range c.ToAdd {
		tasks = append(tasks, syncTask{op: domain.OpAdd, key: key})
	}
	for _, key := range c.Deleted {
		tasks = append(tasks, syncTask{op: domain.OpDelete, key: key})
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			emit(failed(t.key, t.op, err))
			continue
		}
		if plan.DryRun {
			logger.Debug("Dry run: would %s %s", t.op, t.key)
			emit(domain.ItemResult{Key: t.key, Op: t.op, Outcome: domain.OutcomePlanned})
			continue
		}
		g.Go(func() error {
			emit(s.applyOne(ctx, plan, t))
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	sort.SliceStable(results, func(i, j int) bool {
		if opRank(results[i].Op) != opRank(results[j].Op) {
			return opRank(results[i].Op) < opRank(results[j].Op)
		}
		return results[i].Key < results[j].Key
	})
	return results
}

func (s *Synchronizer) applyOne(ctx context.Context, plan SyncPlan, t syncTask) domain.ItemResult {
	var r domain.ItemResult
	switch t.op {
	case domain.OpUpdate:
		r = s.update(ctx, plan.Staged[t.key])
	case domain.OpAdd:
		r = s.add(ctx, plan.Staged[t.key])
	case domain.OpDelete:
		r = s.delete(ctx, t.key, plan.Previous.Records[t.key])
	default:
		r = failed(t.key, t.op, fmt.Errorf("%w: unknown operation", domain.ErrInvalidInput))
	}

	if r.Outcome == domain.OutcomeFailed {
		logger.Warn("%v", r.AsError())
	} else {
		logger.Debug("Applied %s %s", t.op, t.key)
	}
	if r.Discrepancy != nil {
		logger.Warn("Discrepancy after %s %s: %v", t.op, t.key, r.Discrepancy)
	}
	return r
}

// delete removes the record first; its content id is then removed from the
// index best-effort. A failed index removal still counts as deleted.
func (s *Synchronizer) delete(ctx context.Context, key domain.DocumentKey, prev domain.DocumentRecord) domain.ItemResult {
	var rec *domain.DocumentRecord
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.meta.Delete(ctx, key)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Already gone; fall back to the content id seen at snapshot time.
		rec = &prev
	case err != nil:
		return failed(key, domain.OpDelete, fmt.Errorf("delete record: %w", err))
	}

	r := domain.ItemResult{Key: key, Op: domain.OpDelete, Outcome: domain.OutcomeApplied}
	if rec.HasContent() {
		if err := s.remove(ctx, rec.ContentID); err != nil {
			r.Discrepancy = fmt.Errorf("content %s left in index: %w", rec.ContentID, err)
		}
	}
	return r
}

// update pushes the new content, removes the old content id, then writes the
// record. A push failure leaves the record untouched so the next run retries.
func (s *Synchronizer) update(ctx context.Context, doc domain.StagedDocument) domain.ItemResult {
	var current *domain.DocumentRecord
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.meta.Get(ctx, doc.Key)
		return err
	})
	if err != nil {
		return failed(doc.Key, domain.OpUpdate, fmt.Errorf("read record: %w", err))
	}

	newID, err := s.push(ctx, doc)
	if err != nil {
		return failed(doc.Key, domain.OpUpdate, err)
	}

	r := domain.ItemResult{Key: doc.Key, Op: domain.OpUpdate, Outcome: domain.OutcomeApplied, ContentID: newID}
	if current.HasContent() && current.ContentID != newID {
		if err := s.remove(ctx, current.ContentID); err != nil {
			r.Discrepancy = fmt.Errorf("old content %s left in index: %w", current.ContentID, err)
		}
	}

	rec := domain.DocumentRecord{
		Key:         doc.Key,
		Fingerprint: doc.Fingerprint,
		UpdatedAt:   s.now().UTC(),
		ContentID:   newID,
	}
	if err := s.call(ctx, func(ctx context.Context) error { return s.meta.Update(ctx, rec) }); err != nil {
		res := failed(doc.Key, domain.OpUpdate, fmt.Errorf("update record: %w", err))
		res.Discrepancy = s.compensate(ctx, newID)
		return res
	}
	return r
}

// add pushes the content and inserts the record. A push failure inserts
// nothing so the next run classifies the key as an add again.
func (s *Synchronizer) add(ctx context.Context, doc domain.StagedDocument) domain.ItemResult {
	newID, err := s.push(ctx, doc)
	if err != nil {
		return failed(doc.Key, domain.OpAdd, err)
	}

	rec := domain.DocumentRecord{
		Key:         doc.Key,
		Fingerprint: doc.Fingerprint,
		UpdatedAt:   s.now().UTC(),
		ContentID:   newID,
	}
	if err := s.call(ctx, func(ctx context.Context) error { return s.meta.Insert(ctx, rec) }); err != nil {
		res := failed(doc.Key, domain.OpAdd, fmt.Errorf("insert record: %w", err))
		res.Discrepancy = s.compensate(ctx, newID)
		return res
	}
	return domain.ItemResult{Key: doc.Key, Op: domain.OpAdd, Outcome: domain.OutcomeApplied, ContentID: newID}
}

// compensate removes content pushed for a record that could not be written.
// It returns a discrepancy only if the content could not be removed.
func (s *Synchronizer) compensate(ctx context.Context, contentID string) error {
	if err := s.remove(ctx, contentID); err != nil {
		return fmt.Errorf("unrecorded content %s left in index: %w", contentID, err)
	}
	return nil
}

func (s *Synchronizer) push(ctx context.Context, doc domain.StagedDocument) (string, error) {
	if doc.Key == "" {
		return "", fmt.Errorf("%w: no staged content", domain.ErrInvalidInput)
	}
	var id string
	err := s.call(ctx, func(ctx context.Context) error {
		rc, err := s.stager.Open(doc.Handle)
		if err != nil {
			return fmt.Errorf("open staged content: %w", err)
		}
		defer rc.Close()
		id, err = s.index.Push(ctx, doc.Name, rc)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("push content: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("push content: %w: empty content id", domain.ErrContentIndex)
	}
	return id, nil
}

func (s *Synchronizer) remove(ctx context.Context, contentID string) error {
	return s.call(ctx, func(ctx context.Context) error { return s.index.Remove(ctx, contentID) })
}

// call throttles and bounds a single store call.
func (s *Synchronizer) call(ctx context.Context, fn func(context.Context) error) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(callCtx)
}

func failed(key domain.DocumentKey, op domain.Operation, err error) domain.ItemResult {
	return domain.ItemResult{
		Key:     key,
		Op:      op,
		Outcome: domain.OutcomeFailed,
		Err:     err,
	}
}

func opRank(op domain.Operation) int {
	switch op {
	case domain.OpUnchanged:
		return 0
	case domain.OpUpdate:
		return 1
	case domain.OpAdd:
		return 2
	default:
		return 3
	}
}
