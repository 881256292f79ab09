package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last reconciliation run",
	Long: `Shows the summary recorded by the most recent run.
Use --limit to list several runs, newest first.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 0, "list this many recent runs")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if serviceFactory == nil {
		return errors.New("run history not configured")
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	history, closer, err := serviceFactory.RunHistory(settings)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	ctx := cmd.Context()

	if statusLimit > 0 {
		runs, err := history.List(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) == 0 {
			cmd.Println("No runs recorded yet.")
			return nil
		}
		for i := range runs {
			cmd.Printf("%s  %s  %s%s\n",
				runs[i].StartedAt.Local().Format(time.DateTime), shortID(runs[i].ID), outcome(&runs[i]), runs[i].Line())
		}
		return nil
	}

	last, err := history.Last(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Println("No runs recorded yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading last run: %w", err)
	}
	printRun(cmd, last)
	return nil
}

func printRun(cmd *cobra.Command, run *domain.RunSummary) {
	cmd.Printf("Run:      %s\n", run.ID)
	cmd.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	cmd.Printf("Duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.DryRun {
		cmd.Println("Mode:     dry run")
	}
	cmd.Printf("Fetched:  %d\n", run.Fetched)
	cmd.Println(run.Line())
	if run.Fatal != "" {
		cmd.Printf("Aborted:  %s\n", run.Fatal)
	}
	for _, issue := range run.Errors {
		cmd.Printf("  error: %s\n", issue)
	}
	for _, issue := range run.Discrepancies {
		cmd.Printf("  discrepancy: %s\n", issue)
	}
}

func outcome(run *domain.RunSummary) string {
	switch {
	case run.Fatal != "":
		return "ABORTED  "
	case run.DryRun:
		return "DRY RUN  "
	case run.Failed() > 0:
		return "PARTIAL  "
	default:
		return "OK       "
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
