package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/almacen/catalog/cmd/app/commands"
	"github.com/almacen/catalog/internal/app"
	"github.com/almacen/catalog/internal/config"
)

func titleIDFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Title ID",
	}
}

func getStockCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-title",
			Usage: "Register a title with its initial stock",
			Flags: []cli.Flag{
				titleIDFlag(),
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Title name",
				},
				&cli.StringFlag{
					Name:    "stock",
					Aliases: []string{"s"},
					Value:   "0",
					Usage:   "Initial available stock (decimal)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				titleUseCase, err := container.TitleUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateTitle(
					ctx,
					titleUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("id"),
					cmd.String("name"),
					cmd.String("stock"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "restock-title",
			Usage: "Add stock to an active title",
			Flags: []cli.Flag{
				titleIDFlag(),
				&cli.StringFlag{
					Name:     "quantity",
					Aliases:  []string{"q"},
					Required: true,
					Usage:    "Quantity to add (decimal, greater than zero)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				titleUseCase, err := container.TitleUseCase()
				if err != nil {
					return err
				}

				return commands.RunRestockTitle(
					ctx,
					titleUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("id"),
					cmd.String("quantity"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "get-title",
			Usage: "Show the current stock, status and version of a title",
			Flags: []cli.Flag{
				titleIDFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				titleUseCase, err := container.TitleUseCase()
				if err != nil {
					return err
				}

				return commands.RunGetTitle(
					ctx,
					titleUseCase,
					commands.DefaultIO().Writer,
					cmd.Int64("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "retire-title",
			Usage: "Retire a title so that purchases of it are rejected",
			Flags: []cli.Flag{
				titleIDFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				titleUseCase, err := container.TitleUseCase()
				if err != nil {
					return err
				}

				return commands.RunRetireTitle(
					ctx,
					titleUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "process-purchase",
			Usage: "Reconcile a PurchaseConfirmed JSON document, e.g. replayed from the dead letter queue",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "file",
					Aliases:  []string{"F"},
					Required: true,
					Usage:    "Path to the JSON document, or '-' for stdin",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ReconciliationUseCase()
				if err != nil {
					return err
				}

				return commands.RunProcessPurchase(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("file"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "check-event",
			Usage: "Report whether a purchase event has been processed",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "event-id",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Purchase event ID",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ReconciliationUseCase()
				if err != nil {
					return err
				}

				return commands.RunCheckEvent(
					ctx,
					useCase,
					commands.DefaultIO().Writer,
					cmd.String("event-id"),
					cmd.String("format"),
				)
			},
		},
	}
}
