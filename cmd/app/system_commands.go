package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/almacen/catalog/cmd/app/commands"
	"github.com/almacen/catalog/internal/app"
	"github.com/almacen/catalog/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API, the purchase listener and the outbox forwarder",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations, or move the schema by --steps",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "dir",
					Value: "migrations",
					Usage: "Directory holding the postgresql and mysql migration folders",
				},
				&cli.IntFlag{
					Name:  "steps",
					Value: 0,
					Usage: "Migrations to apply (negative rolls back); 0 applies all pending",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(),
					commands.DefaultIO().Writer,
					cfg.DBDriver,
					cfg.DBConnectionString,
					cmd.String("dir"),
					int(cmd.Int("steps")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "forward-outbox",
			Usage: "Dispatch pending outbox events once and exit",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunForwardOutbox(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cfg.OutboxBatchSize,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-outbox",
			Usage: "Prune processed outbox events older than --days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete processed events older than this many days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many events would be deleted without deleting",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanOutbox(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}
