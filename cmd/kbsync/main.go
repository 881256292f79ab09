// Command kbsync keeps an OpenAI vector store in step with a help centre.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbsync/internal/core/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cli.Configure(services.NewSettingsService(configStore), &factory{})
	cli.SetVersion(version)
	return cli.Execute(context.Background())
}
