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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sustainhub/sustainability-hub/internal/app"
	"github.com/sustainhub/sustainability-hub/internal/backend"
	jobmetrics "github.com/sustainhub/sustainability-hub/internal/jobs"
	"github.com/sustainhub/sustainability-hub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// components is everything the worker process runs.
type components struct {
	worker  *jobs.Worker
	metrics http.Handler
	backend string
}

// build wires the worker against a private registry served on its own /metrics listener.
func build(cfg *app.Config, logger *slog.Logger) (*components, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	backendMetrics, err := backend.NewMetrics(registry)
	if err != nil {
		return nil, err
	}
	apiClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithMetrics(backendMetrics))
	testCaseJob := jobs.NewTestCaseJob(apiClient, logger, jobmetrics.NewMetrics(registry))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().Asynq(),
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTestCaseCreate, Handler: testCaseJob.Handle},
		},
	})
	if err != nil {
		return nil, err
	}
	return &components{
		worker:  worker,
		metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		backend: apiClient.BaseURL(),
	}, nil
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	worker := c.worker

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("backend", c.backend))
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.metrics)
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
