// Command app runs the catalog stock service and its operator commands.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:                  "catalog",
		Usage:                 "Catalog stock reconciliation service and title inventory tools",
		Version:               version,
		EnableShellCompletion: true,
		Commands:              getCommands(version),
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("command failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
