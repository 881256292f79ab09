package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Reconciler implements the interfaces.
var (
	_ driving.Reconciler = (*Reconciler)(nil)
	_ driving.RunHistory = (*Reconciler)(nil)
)

// Run phases reported through Status.
const (
	PhaseIdle     = "idle"
	PhaseFetch    = "fetch"
	PhaseSnapshot = "snapshot"
	PhaseStage    = "stage"
	PhaseApply    = "apply"
	PhaseCleanup  = "cleanup"
)

// Dependencies are the collaborators of a Reconciler.
// Runs and Lock are optional.
type Dependencies struct {
	Corpus        driven.CorpusSource
	Canonicaliser driven.Canonicaliser
	Stager        driven.ContentStager
	Metadata      driven.MetadataStore
	Index         driven.ContentIndex
	Runs          driven.RunStore
	Lock          driven.RunLock
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Corpus == nil {
		missing = append(missing, "corpus source")
	}
	if d.Canonicaliser == nil {
		missing = append(missing, "canonicaliser")
	}
	if d.Stager == nil {
		missing = append(missing, "content stager")
	}
	if d.Metadata == nil {
		missing = append(missing, "metadata store")
	}
	if d.Index == nil {
		missing = append(missing, "content index")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", domain.ErrInvalidInput, missing)
	}
	return nil
}

// Reconciler coordinates one reconciliation run: load the previous snapshot,
// stage and fingerprint the corpus, classify, synchronise, report and clean up.
type Reconciler struct {
	deps Dependencies
	sync *Synchronizer
	now  func() time.Time

	// running guards against overlapping runs within one process.
	running sync.Mutex

	mu     sync.RWMutex
	status driving.SyncStatus
}

// NewReconciler creates a reconciler over deps.
func NewReconciler(deps Dependencies, cfg SynchronizerConfig) (*Reconciler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		deps:   deps,
		sync:   NewSynchronizer(deps.Metadata, deps.Index, deps.Stager, cfg),
		now:    now,
		status: driving.SyncStatus{Phase: PhaseIdle},
	}, nil
}

// Run performs one reconciliation run.
//
// Fatal errors (corpus unreachable, snapshot unreadable, staging failure,
// lock held) abort the run before any mutation. Per-item failures never
// abort; they are listed in the returned summary. The summary is returned
// and logged on every path.
func (r *Reconciler) Run(ctx context.Context, opts domain.RunOptions) (*domain.RunSummary, error) {
	if !r.running.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer r.running.Unlock()

	if r.deps.Lock != nil {
		if err := r.deps.Lock.Acquire(); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.deps.Lock.Release(); err != nil {
				logger.Warn("Failed to release run lock: %v", err)
			}
		}()
	}

	summary := &domain.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: r.now().UTC(),
		DryRun:    opts.DryRun,
	}
	r.setStatus(driving.SyncStatus{RunID: summary.ID, Running: true, Phase: PhaseFetch})
	defer r.setStatus(driving.SyncStatus{Phase: PhaseIdle})

	logger.Section("Run " + summary.ID)

	// Staged artefacts are released on every exit path.
	defer func() {
		r.setPhase(PhaseCleanup)
		if err := r.deps.Stager.Release(); err != nil {
			logger.Warn("Failed to clean up staged content: %v", err)
			return
		}
		logger.Info("Staged content cleaned up")
	}()

	err := r.run(ctx, opts, summary)
	summary.FinishedAt = r.now().UTC()
	if err != nil {
		summary.Fatal = err.Error()
		logger.Error("Run aborted: %v", err)
	}
	logger.Info("%s", summary.Line())
	r.record(summary)

	return summary, err
}

func (r *Reconciler) run(ctx context.Context, opts domain.RunOptions, summary *domain.RunSummary) error {
	logger.Info("Fetching articles...")
	articles, err := r.deps.Corpus.FetchAll(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorpusUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrCorpusUnavailable, err)
	}
	logger.Info("Total articles fetched: %d", len(articles))

	r.setPhase(PhaseSnapshot)
	previous, err := LoadSnapshot(ctx, r.deps.Metadata)
	if err != nil {
		return err
	}

	r.setPhase(PhaseStage)
	staged, err := r.stage(ctx, articles)
	if err != nil {
		return err
	}
	current, byKey := snapshotOf(staged)
	summary.Fetched = current.Len()

	c := Classify(previous, current)
	logger.Info("About to process %d updates, %d additions and %d deletions (%d unchanged)",
		len(c.ToUpdate), len(c.ToAdd), len(c.Deleted), len(c.Unchanged))

	r.mu.Lock()
	r.status.Phase = PhaseApply
	r.status.ItemsPending = c.Pending()
	r.mu.Unlock()

	plan := SyncPlan{
		Classification: c,
		Previous:       previous,
		Staged:         byKey,
		DryRun:         opts.DryRun,
	}
	r.sync.Apply(ctx, plan, func(res domain.ItemResult) {
		summary.Record(res)
		if res.Op == domain.OpUnchanged {
			return
		}
		r.mu.Lock()
		r.status.ItemsProcessed++
		if res.Outcome == domain.OutcomeFailed {
			r.status.ErrorCount++
		}
		r.mu.Unlock()
	})

	for _, issue := range summary.Errors {
		logger.Error("Item failed: %s", issue)
	}
	for _, issue := range summary.Discrepancies {
		logger.Warn("Index discrepancy: %s", issue)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// stage canonicalises every article, stages its content and fingerprints it.
// Any failure is fatal: a missing document would otherwise be classified as deleted.
func (r *Reconciler) stage(ctx context.Context, articles []domain.RawArticle) ([]domain.StagedDocument, error) {
	logger.Info("Staging %d articles...", len(articles))
	staged := make([]domain.StagedDocument, 0, len(articles))
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := r.deps.Canonicaliser.Canonicalise(ctx, &articles[i])
		if err != nil {
			return nil, fmt.Errorf("%w: canonicalise article %d: %w", domain.ErrStagingFailed, articles[i].ID, err)
		}
		handle, err := r.deps.Stager.Stage(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %s: %w", domain.ErrStagingFailed, doc.Key, err)
		}
		fp, err := fingerprintStaged(r.deps.Stager, handle)
		if err != nil {
			return nil, fmt.Errorf("%w: fingerprint %s: %w", domain.ErrStagingFailed, doc.Key, err)
		}
		staged = append(staged, domain.StagedDocument{
			Key:         doc.Key,
			Fingerprint: fp,
			Handle:      handle,
			Name:        doc.Name,
			Title:       doc.Title,
		})
	}
	logger.Info("Staged %d documents", len(staged))
	return staged, nil
}

// record persists the summary. Failures are logged, never fatal.
func (r *Reconciler) record(summary *domain.RunSummary) {
	if r.deps.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.deps.Runs.SaveRun(ctx, *summary); err != nil {
		logger.Warn("Failed to record run %s: %v", summary.ID, err)
	}
}

// Status returns a copy of the current run status.
func (r *Reconciler) Status(_ context.Context) (*driving.SyncStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := r.status
	return &status, nil
}

// Last returns the most recent recorded run.
func (r *Reconciler) Last(ctx context.Context) (*domain.RunSummary, error) {
	if r.deps.Runs == nil {
		return nil, domain.ErrNotFound
	}
	return r.deps.Runs.LastRun(ctx)
}

// List returns up to limit recorded runs, newest first.
func (r *Reconciler) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if r.deps.Runs == nil {
		return nil, nil
	}
	return r.deps.Runs.ListRuns(ctx, limit)
}

func (r *Reconciler) setStatus(status driving.SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *Reconciler) setPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Phase = phase
}
