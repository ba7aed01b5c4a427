package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/wonny/signaldesk/internal/predictor"
	"github.com/wonny/signaldesk/internal/toolrpc"
)

// predictorCmd represents the predictor command
var predictorCmd = &cobra.Command{
	Use:   "predictor",
	Short: "signal-predictor tool 서비스 시작",
	Long: `Serves the predict tool over websocket at /mcp.
Text generation is delegated back to the caller through sampling.

Example:
  go run ./cmd/signaldesk predictor
  go run ./cmd/signaldesk predictor --port 9001`,
	RunE: runPredictor,
}

var predictorPort string

func init() {
	rootCmd.AddCommand(predictorCmd)

	predictorCmd.Flags().StringVar(&predictorPort, "port", "", "listen port (기본: PREDICTOR_PORT)")
}

func runPredictor(cmd *cobra.Command, args []string) error {
	a, err := newApp("signal-predictor")
	if err != nil {
		return err
	}
	defer a.close()

	port := a.cfg.Endpoints.PredictorPort
	if predictorPort != "" {
		port = predictorPort
	}

	set, err := a.loadPrompts()
	if err != nil {
		return err
	}

	tools := toolrpc.NewServer("signal-predictor", a.log, a.metrics)
	predictor.New(set, a.log).Register(tools)

	r := mux.NewRouter()
	r.Handle("/mcp", tools)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler()).Methods("GET")
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	a.log.WithField("port", port).Info("Signal predictor started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("predictor server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
