package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"SocialListener/internal/config"
	"SocialListener/internal/infrastructure/bluesky"
	"SocialListener/internal/infrastructure/httpapi"
	"SocialListener/internal/infrastructure/nlp"
	"SocialListener/internal/infrastructure/scheduler"
	"SocialListener/internal/infrastructure/storage"
	"SocialListener/internal/logging"
	"SocialListener/internal/platform"
	"SocialListener/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	registry     *platform.Registry
	orchestrator *usecase.Orchestrator
	scheduler    *scheduler.IntervalScheduler
	server       *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		return nil, err
	}

	registry := platform.NewRegistry()
	registry.Register(bluesky.NewClient(cfg.Bluesky.Host, cfg.Bluesky.Handle, cfg.Bluesky.AppPassword))

	analyzer := nlp.NewClient(cfg.NLP)
	enricher := usecase.NewEnricher(analyzer, analyzer, baseLogger.With("component", "enricher"))
	collector := usecase.NewCollector(enricher, cfg.Collector, baseLogger.With("component", "collector"))

	orchestrator := usecase.NewOrchestrator(
		registry,
		collector,
		storage.NewListenerStore(db),
		storage.NewTxRunner(db),
		baseLogger.With("component", "orchestrator"),
	)

	api := httpapi.NewServer(orchestrator, registry, baseLogger.With("component", "api"))

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		registry:     registry,
		orchestrator: orchestrator,
		scheduler:    scheduler.NewIntervalScheduler(cfg.Collector.PollInterval()),
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run starts the scheduled trigger and the HTTP trigger API, then blocks
// until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	job := func(t time.Time) {
		for _, name := range a.registry.Platforms() {
			if _, err := a.orchestrator.Collect(ctx, usecase.Trigger{
				Kind:     usecase.TriggerScheduled,
				Platform: name,
			}); err != nil {
				a.logger.Error("scheduled collection failed", "platform", name, "error", err)
			}
		}
	}

	if err := a.scheduler.Start(ctx, job); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Collector.PollInterval())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.scheduler.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.scheduler.Stop(shutdownCtx)
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
