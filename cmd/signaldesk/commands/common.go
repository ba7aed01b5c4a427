package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/signaldesk/internal/llm"
	"github.com/wonny/signaldesk/internal/prompts"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/clock"
	"github.com/wonny/signaldesk/pkg/config"
	"github.com/wonny/signaldesk/pkg/database"
	"github.com/wonny/signaldesk/pkg/httputil"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/tracing"
)

// app holds the ambient dependencies every command starts from
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Recorder // nil when METRICS_ENABLED=false
	tracer  *tracing.Provider
}

func newApp(component string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	a := &app{cfg: cfg, log: logger.New(cfg)}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	a.tracer, err = tracing.New(cfg.TracingEnabled, component)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("Tracer shutdown failed")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadPrompts returns the override file when configured, else the embedded defaults
func (a *app) loadPrompts() (*prompts.Set, error) {
	if a.cfg.PromptsFile == "" {
		return prompts.Default(), nil
	}
	set, err := prompts.Load(a.cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	hash, _ := prompts.Hash(set)
	a.log.WithFields(map[string]interface{}{
		"file":    a.cfg.PromptsFile,
		"version": set.Meta.Version,
		"hash":    hash,
	}).Info("Prompts loaded")
	return set, nil
}

// newGenerator builds the rate-limited generator.
// HTTP retries are disabled so that every outbound call passes through the window.
func (a *app) newGenerator() (*llm.Generator, error) {
	if err := a.cfg.RequireLLM(); err != nil {
		return nil, err
	}

	httpClient := httputil.NewWithTimeout(a.log, a.cfg.LLM.Timeout).DisableRetry()
	backend, err := llm.NewGemini(context.Background(), httpClient, a.cfg.LLM.BaseURL, a.cfg.LLM.APIKey)
	if err != nil {
		return nil, err
	}
	window := llm.NewWindow(a.cfg.LLM.MaxCalls, a.cfg.LLM.Window, a.cfg.LLM.WaitMargin, clock.Real{})

	return llm.NewGenerator(backend, window, a.cfg.LLM.LowModel, a.cfg.LLM.HighModel, a.log, a.metrics, a.tracer), nil
}

// openPostgres connects and returns the Postgres repository with its pool closer
func (a *app) openPostgres() (*store.Postgres, func(), error) {
	db, err := database.New(a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewPostgres(db.Pool), db.Close, nil
}

// serveMetrics exposes /metrics on METRICS_PORT until ctx is done
func (a *app) serveMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}

	r := mux.NewRouter()
	r.Handle("/metrics", a.metrics.Handler()).Methods("GET")
	srv := &http.Server{
		Addr:              ":" + a.cfg.MetricsPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Warn("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.WithField("port", a.cfg.MetricsPort).Info("Metrics endpoint started")
}
