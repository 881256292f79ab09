package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/adapters/driving/logview"
	"github.com/custodia-labs/kbsync/internal/core/domain"
)

var logsServeAddr string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect job logs",
	Long:  `Every run writes a job log. These commands list, print and serve them.`,
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job logs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a job log (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogsShow,
}

var logsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve job logs over HTTP",
	Long: `Starts a small web server listing the job logs newest first, with a page
per log and a /latest shortcut. Stops on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runLogsServe,
}

func init() {
	logsServeCmd.Flags().StringVar(&logsServeAddr, "addr", logview.DefaultAddr, "listen address")
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsShowCmd)
	logsCmd.AddCommand(logsServeCmd)
	rootCmd.AddCommand(logsCmd)
}

func logCatalog() (*logview.Catalog, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return logview.NewCatalog(logDir(settings)), nil
}

func runLogsList(cmd *cobra.Command, _ []string) error {
	catalog, err := logCatalog()
	if err != nil {
		return err
	}
	logs, err := catalog.List()
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		cmd.Printf("No job logs in %s\n", catalog.Dir())
		return nil
	}
	for _, l := range logs {
		cmd.Printf("%s  %8d  %s\n", l.ModTime.Local().Format(time.DateTime), l.Size, l.Name)
	}
	return nil
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	catalog, err := logCatalog()
	if err != nil {
		return err
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		latest, err := catalog.Latest()
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("No job logs in %s\n", catalog.Dir())
			return nil
		}
		if err != nil {
			return err
		}
		name = latest.Name
	}

	data, err := catalog.Read(name)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("log file %s not found", name)
	}
	if err != nil {
		return err
	}
	cmd.Print(string(data))
	return nil
}

func runLogsServe(cmd *cobra.Command, _ []string) error {
	catalog, err := logCatalog()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cmd.Printf("Serving job logs from %s on http://%s\n", catalog.Dir(), logsServeAddr)
	return logview.Serve(ctx, logsServeAddr, catalog)
}
