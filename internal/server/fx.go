// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/api"
	"github.com/irclight/unfurl/internal/clock/system"
	"github.com/irclight/unfurl/internal/config"
	"github.com/irclight/unfurl/internal/events"
	"github.com/irclight/unfurl/internal/events/sinks"
	"github.com/irclight/unfurl/internal/fetch"
	"github.com/irclight/unfurl/internal/hash/sha256"
	"github.com/irclight/unfurl/internal/id/uuid"
	"github.com/irclight/unfurl/internal/logging"
	"github.com/irclight/unfurl/internal/metrics"
	"github.com/irclight/unfurl/internal/scheduler"
	"github.com/irclight/unfurl/internal/throttle"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
	hub       *events.Hub
	apiServer *api.Server
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("Creating application",
		zap.String("addr", cfg.Server.ListenAddr()),
		zap.Int("concurrency", cfg.Preview.Request.Concurrency),
		zap.Int("timeout_ms", cfg.Preview.Request.TimeoutMs),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Scheduler exposes the wired scheduler, mainly for one-shot CLI use.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr(),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. In-flight previews are
// drained before the event hub stops so every outcome is still observed.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			a.logger.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("event hub close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability() {
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	fetchCfg := cfg.Preview.Request.FetchConfig()
	if err := fetchCfg.Validate(); err != nil {
		return nil, fmt.Errorf("preview config invalid: %w", err)
	}

	app.logger.Info("building application dependencies")
	metrics.Init()

	if err := setupEvents(ctx, app); err != nil {
		return nil, err
	}

	gate := throttle.New(fetchCfg.Concurrency, fetchCfg.Delay)
	fetcher := fetch.New(fetchCfg, logger.Named("fetch"))
	app.scheduler = scheduler.New(
		fetchCfg,
		gate,
		fetcher,
		sha256.New(),
		system.New(),
		uuid.New(),
		app.hub,
		logger.Named("scheduler"),
	)

	app.apiServer = api.NewServer(app.scheduler, logger.Named("api"))

	return app, nil
}

func setupEvents(ctx context.Context, app *App) error {
	hubCfg := app.cfg.Events.HubConfig()
	hubCfg.BaseContext = ctx
	hubCfg.Logger = app.logger.Named("events")

	sinkList := []events.Sink{
		sinks.NewLogSink(app.logger.Named("events_log")),
	}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	app.logger.Debug("event sinks configured", zap.Int("sinks", len(sinkList)))

	app.hub = events.NewHub(hubCfg, sinkList...)
	return nil
}
