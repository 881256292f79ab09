package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server exposing the synchronised knowledge
base to AI assistants: a "search" tool over the vector store and the recorded
runs as resources (kbsync://runs, kbsync://runs/last).

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  kbsync mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  kbsync mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if serviceFactory == nil {
		return errors.New("search service not configured")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	search, err := serviceFactory.Search(settings)
	if err != nil {
		return err
	}
	ports := &mcp.Ports{Search: search}

	// Run history is optional; search still works without it.
	if history, closer, err := serviceFactory.RunHistory(settings); err == nil {
		defer closer.Close() //nolint:errcheck
		ports.Runs = history
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		cmd.Printf("MCP server listening on http://localhost%s%s\n", addr, mcp.Endpoint)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
