package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sustainhub/sustainability-hub/internal/app"
	"github.com/sustainhub/sustainability-hub/internal/backend"
	jobmetrics "github.com/sustainhub/sustainability-hub/internal/jobs"
	"github.com/sustainhub/sustainability-hub/internal/landing"
	"github.com/sustainhub/sustainability-hub/internal/observability"
	"github.com/sustainhub/sustainability-hub/internal/platform/cache"
	"github.com/sustainhub/sustainability-hub/internal/requirements"
	"github.com/sustainhub/sustainability-hub/internal/shared"
	"github.com/sustainhub/sustainability-hub/internal/specs"
	"github.com/sustainhub/sustainability-hub/internal/testcases"
	"github.com/sustainhub/sustainability-hub/internal/view"
	"github.com/sustainhub/sustainability-hub/jobs"
	"github.com/sustainhub/sustainability-hub/web"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hub stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "hub_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}
	content, err := landing.LoadContent(web.Content, "content/landing.yaml")
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	backendMetrics, err := backend.NewMetrics(metrics.Registerer())
	if err != nil {
		return err
	}
	apiClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithMetrics(backendMetrics))
	componentOpts := cfg.ComponentOptions(logger)

	specService, err := specs.NewService(specs.NewRepository(apiClient), componentOpts, cfg.ComponentIdleTTL)
	if err != nil {
		return err
	}
	boards, err := requirements.NewBoards(requirements.NewRepository(apiClient), componentOpts, cfg.ComponentIdleTTL)
	if err != nil {
		return err
	}

	redisOpts := cfg.Redis().Asynq()
	jobClient := jobs.NewClient(redisOpts, jobmetrics.NewMetrics(metrics.Registerer()))
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	testService, err := testcases.NewService(jobClient, componentOpts, cfg.ComponentIdleTTL)
	if err != nil {
		return err
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		LandingHandler:      landing.NewHandler(logger, content, templates, csrfManager),
		SpecsHandler:        specs.NewHandler(logger, specService, templates, csrfManager),
		RequirementsHandler: requirements.NewHandler(logger, boards, templates, csrfManager),
		TestCasesHandler:    testcases.NewHandler(logger, testService, templates, csrfManager),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
		Health: func(r *http.Request) error {
			return redisClient.Ping(r.Context()).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", apiClient.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		pingCtx, cancel := context.WithTimeout(gctx, 5*time.Second)
		defer cancel()
		if err := apiClient.Ping(pingCtx); err != nil {
			logger.Warn("backend not reachable at startup", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
