package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// version is set at build time through SetVersion.
var version = "dev"

var verbose bool

// ServiceFactory builds the services a command needs from the effective
// settings. Each command builds only what it uses, so "config" and "logs"
// work before the content index is configured.
type ServiceFactory interface {
	// Reconciler builds a reconciler and its run history.
	// The returned closer releases the underlying stores.
	Reconciler(ctx context.Context, settings *domain.AppSettings) (driving.Reconciler, driving.RunHistory, io.Closer, error)

	// RunHistory opens the recorded runs only.
	RunHistory(settings *domain.AppSettings) (driving.RunHistory, io.Closer, error)

	// Search builds the retrieval service over the content index.
	Search(settings *domain.AppSettings) (driving.SearchService, error)
}

// Services injected by main.
var (
	settingsService driving.SettingsService
	serviceFactory  ServiceFactory
)

var rootCmd = &cobra.Command{
	Use:   "kbsync",
	Short: "Keep a vector store in sync with a help centre",
	Long: `kbsync fetches every article of a help centre, converts it to markdown,
and reconciles the result against a metadata store and an OpenAI vector store:
new articles are uploaded, changed ones replaced and removed ones deleted.

Each run writes a job log and records a summary that "kbsync status" shows.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress to stderr")
}

// Configure injects the services the commands use.
func Configure(settings driving.SettingsService, factory ServiceFactory) {
	settingsService = settings
	serviceFactory = factory
}

// SetVersion sets the version printed by "kbsync version".
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadSettings returns the effective settings.
func loadSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	return settingsService.Get()
}

// logDir returns the configured job log directory or ~/.kbsync/logs.
func logDir(settings *domain.AppSettings) string {
	if settings.Paths.LogDir != "" {
		return settings.Paths.LogDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kbsync", "logs")
	}
	return filepath.Join(home, ".kbsync", "logs")
}
