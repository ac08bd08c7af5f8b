package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/almacen/catalog/internal/app"
	"github.com/almacen/catalog/internal/config"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
)

// RunServer starts the HTTP API, the metrics server, the purchase and rating
// listeners and, in outbox mode, the outbox forwarder. It blocks until
// SIGINT/SIGTERM or until any of them fails, then shuts the rest down. In-flight
// deliveries get up to LISTENER_HANDLER_TIMEOUT to finish.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server",
		slog.String("version", version),
		slog.String("publish_mode", cfg.EventPublishMode),
		slog.String("dispatcher", cfg.EventDispatcher),
	)

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	broker, err := container.BrokerConnection()
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	listener, err := container.Listener()
	if err != nil {
		return fmt.Errorf("failed to initialize listener: %w", err)
	}

	ratingListener, err := container.RatingListener()
	if err != nil {
		return fmt.Errorf("failed to initialize rating listener: %w", err)
	}

	var forwarder outboxUseCase.UseCase
	if cfg.EventPublishMode == config.PublishModeOutbox {
		forwarder, err = container.OutboxUseCase()
		if err != nil {
			return fmt.Errorf("failed to initialize outbox forwarder: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := listener.Listen(gctx, broker); err != nil {
			return fmt.Errorf("listener error: %w", err)
		}
		return nil
	})

	if ratingListener != nil {
		g.Go(func() error {
			if err := ratingListener.Listen(gctx, broker); err != nil {
				return fmt.Errorf("rating listener error: %w", err)
			}
			return nil
		})
	}

	if forwarder != nil {
		g.Go(func() error {
			if err := forwarder.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox forwarder error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ListenerHandlerTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
