// Command asp-agent indexes antimicrobial stewardship literature and
// generates evidence-grounded feedback for training scenarios.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driving/cli"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
