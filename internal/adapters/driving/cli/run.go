package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/core/services"
	"github.com/custodia-labs/kbsync/internal/logger"
)

var (
	runDryRun   bool
	runEvery    time.Duration
	runSchedule bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the vector store with the help centre",
	Long: `Fetches every article, stages it as markdown and reconciles the set against
the metadata store and the vector store. Unchanged articles are skipped.

A failure to fetch the corpus or read the previous state aborts the run
before anything is changed; a failure on one article never stops the others
and is retried on the next run.

Use --every to keep running on a fixed interval until interrupted, or
--schedule to use the interval from sync.interval_minutes.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "classify and report without changing either store")
	runCmd.Flags().DurationVar(&runEvery, "every", 0, "repeat the run on this interval (e.g. 24h)")
	runCmd.Flags().BoolVar(&runSchedule, "schedule", false, "repeat the run on the configured interval")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if serviceFactory == nil {
		return errors.New("reconcile service not configured")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	reconciler, _, closer, err := serviceFactory.Reconciler(ctx, settings)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	runner := &jobLogged{next: reconciler, dir: logDir(settings), now: time.Now}
	opts := domain.RunOptions{DryRun: runDryRun}

	every := runEvery
	if every == 0 && runSchedule {
		every = time.Duration(settings.Sync.IntervalMinutes) * time.Minute
	}
	if every > 0 {
		return runScheduled(ctx, cmd, runner, opts, every)
	}

	summary, err := runner.Run(ctx, opts)
	printRunResult(cmd, summary, runner.lastPath)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func runScheduled(ctx context.Context, cmd *cobra.Command, runner *jobLogged, opts domain.RunOptions, every time.Duration) error {
	scheduler := services.NewScheduler(runner, every, opts)
	scheduler.OnRun = func(summary *domain.RunSummary, _ error) {
		printRunResult(cmd, summary, runner.lastPath)
	}

	cmd.Printf("Running every %s. Press Ctrl+C to stop.\n", every)
	err := scheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		cmd.Println("Stopped.")
		return nil
	}
	return err
}

func printRunResult(cmd *cobra.Command, summary *domain.RunSummary, jobLog string) {
	if summary == nil {
		return
	}
	prefix := ""
	if summary.DryRun {
		prefix = "[dry run] "
	}
	cmd.Printf("%s%s\n", prefix, summary.Line())
	for _, issue := range summary.Errors {
		cmd.Printf("  error: %s\n", issue)
	}
	for _, issue := range summary.Discrepancies {
		cmd.Printf("  discrepancy: %s\n", issue)
	}
	if summary.DryRun && summary.Fatal == "" {
		cmd.Println("Dry run: the counts above are planned; no store was changed.")
	}
	if jobLog != "" {
		cmd.Printf("Job log: %s\n", jobLog)
	}
}

// jobLogged gives every run its own job log file.
type jobLogged struct {
	next driving.Reconciler
	dir  string
	now  func() time.Time

	lastPath string
}

func (j *jobLogged) Run(ctx context.Context, opts domain.RunOptions) (*domain.RunSummary, error) {
	path, err := logger.OpenJobLog(j.dir, j.now())
	if err != nil {
		logger.Warn("Job log disabled: %v", err)
		path = ""
	}
	j.lastPath = path
	defer func() {
		if err := logger.CloseJobLog(); err != nil {
			logger.Warn("Closing job log: %v", err)
		}
	}()
	return j.next.Run(ctx, opts)
}

func (j *jobLogged) Status(ctx context.Context) (*driving.SyncStatus, error) {
	return j.next.Status(ctx)
}
