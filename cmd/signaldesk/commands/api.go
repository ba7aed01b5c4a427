package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/signaldesk/internal/api"
	"github.com/wonny/signaldesk/internal/api/handlers"
	"github.com/wonny/signaldesk/internal/evaluation"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Gateway API 서버 시작",
	Long: `Starts the storage-facing gateway API the orchestrator talks to.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/v1/stocks/list
  POST /api/v1/stocks/upsert
  POST /api/v1/conclusions/add
  GET  /api/v1/conclusions/{stock}/{date|all}
  POST /api/v1/info/add/
  GET  /api/v1/highlights/generate[?stock=]
  GET  /api/v1/highlights/list/{stock_id}
  GET|POST /api/v1/highlights/system_status
  GET|POST /api/v1/highlights/last_message

Example:
  go run ./cmd/signaldesk api
  go run ./cmd/signaldesk api --port 8080
  go run ./cmd/signaldesk api --memory`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	apiMemory bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiMemory, "memory", false, "in-memory storage instead of PostgreSQL (development only)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp("gateway")
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	ctx, stop := signalContext()
	defer stop()

	var repo store.Repository
	if apiMemory {
		repo = store.NewMemory()
		a.log.Warn("Using in-memory storage - data is lost on restart")
	} else {
		pg, closeDB, err := a.openPostgres()
		if err != nil {
			return err
		}
		defer closeDB()
		repo = pg
	}

	rdb, err := redis.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	var cache *redis.Cache
	if rdb.Enabled() {
		cache = redis.NewCache(rdb, "signaldesk")
	}

	engine := evaluation.NewEngine(repo, a.metrics, a.tracer, a.log.Zerolog())
	router := api.NewRouter(api.Deps{
		Repo:    repo,
		Engine:  engine,
		Status:  handlers.NewStatusStore(rdb, "signaldesk"),
		Cache:   cache,
		Metrics: a.metrics,
		Logger:  a.log,
	})

	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	a.log.WithFields(map[string]interface{}{
		"port":  a.cfg.Port,
		"redis": rdb.Addr(),
	}).Info("Gateway API started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
