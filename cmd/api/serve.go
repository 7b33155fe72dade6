package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sow-service/internal/api/http"
	"github.com/spec-kit/sow-service/internal/api/http/handlers"
	"github.com/spec-kit/sow-service/internal/auth"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/observability"
	"github.com/spec-kit/sow-service/internal/persistence"
	"github.com/spec-kit/sow-service/internal/repository"
	"github.com/spec-kit/sow-service/internal/sequence"
	"github.com/spec-kit/sow-service/internal/service"
	"github.com/spec-kit/sow-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the scope-of-work HTTP API and the notification workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				return err
			}
		}

		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()

		var metrics *observability.Metrics
		if cfg.Metrics.Enabled {
			metrics = observability.NewMetrics()
		}

		store := repository.NewPostgresStore(pg.PoolHandle())
		dispatcher := events.NewInMemoryDispatcher(logger)

		notifications := service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification)
		notifyWorker := worker.NewNotificationWorker(notifications.Handle, logger,
			cfg.Notification.Workers, cfg.Notification.QueueSize)
		notifyWorker.Subscribe(dispatcher)
		workerCtx, cancelWorkers := context.WithCancel(context.Background())
		defer cancelWorkers()
		notifyWorker.Start(workerCtx)

		numbers := sequence.NewGenerator(cfg.Sequence, sequence.Dependencies{
			Reserver: sequence.NewRedisReserver(redis.Client, cfg.Sequence.ReservationTTL()),
			Recorder: metrics,
			Logger:   logger,
		})
		scopes := service.NewScopeOfWorkService(service.ScopeOfWorkDependencies{
			Store:               store,
			Numbers:             numbers,
			Dispatcher:          dispatcher,
			Metrics:             metrics,
			Logger:              logger,
			MaxPropagationDepth: cfg.Propagation.MaxDepth,
		})

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		authMiddleware := auth.NewAuthMiddleware(tokens, store.Users())

		app := fiber.New(fiber.Config{AppName: cfg.App.Name})
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

		dependencies := map[string]handlers.Pinger{"postgres": store}
		if redis.Enabled() {
			dependencies["redis"] = redis
		}
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
			ScopesOfWork:   handlers.NewScopesOfWorkHandler(scopes),
			AuthMiddleware: authMiddleware,
			Metrics:        metrics,
		})

		listenErr := make(chan error, 1)
		go func() {
			logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
			listenErr <- app.Listen(cfg.App.Addr())
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
		case err := <-listenErr:
			if err != nil {
				logger.Error("fiber listen", zap.Error(err))
			}
		}

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		notifyWorker.Stop()

		logger.Info("http server and notification workers shut down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
