package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/signaldesk/internal/orchestrator"
	"github.com/wonny/signaldesk/internal/toolrpc"
	"github.com/wonny/signaldesk/pkg/clock"
)

// orchestrateCmd represents the orchestrate command
var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "일일 예측 사이클 실행",
	Long: `Runs the daily cycle forever:

  AwaitOpen → CollectInfo → Predict&Conclude → MonitorTrading → RecomputeHighlights → AwaitNextCycle

Requires INFO_COLLECTOR_URL, SIGNAL_PREDICTOR_URL, TRADER_URL, GATEWAY_URL and LLM_API_KEY.

Example:
  go run ./cmd/signaldesk orchestrate
  go run ./cmd/signaldesk orchestrate --once`,
	RunE: runOrchestrate,
}

var orchestrateOnce bool

func init() {
	rootCmd.AddCommand(orchestrateCmd)

	orchestrateCmd.Flags().BoolVar(&orchestrateOnce, "once", false, "run a single cycle and print its result")
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	a, err := newApp("orchestrator")
	if err != nil {
		return err
	}
	defer a.close()

	// 설정 누락은 루프 시작 전에 실패
	if err := a.cfg.RequireOrchestrator(); err != nil {
		return err
	}

	opts, err := orchestrator.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}
	set, err := a.loadPrompts()
	if err != nil {
		return err
	}
	generator, err := a.newGenerator()
	if err != nil {
		return err
	}

	ep := a.cfg.Endpoints
	orch := orchestrator.New(orchestrator.Deps{
		Collector: toolrpc.NewClient("info-collector", ep.InfoCollectorURL, a.log, a.metrics, a.tracer),
		Predictor: toolrpc.NewClient("signal-predictor", ep.SignalPredictorURL, a.log, a.metrics, a.tracer),
		Trader:    toolrpc.NewClient("trader", ep.TraderURL, a.log, a.metrics, a.tracer),
		Gateway:   orchestrator.NewHTTPGateway(ep.GatewayURL, a.log),
		Generator: generator,
		Prompts:   set,
		Clock:     clock.Real{},
		Logger:    a.log,
		Metrics:   a.metrics,
		Tracer:    a.tracer,
	}, opts)

	ctx, stop := signalContext()
	defer stop()
	a.serveMetrics(ctx)

	if orchestrateOnce {
		result := orch.RunCycle(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("cycle failed: %s", result.Error)
		}
		return nil
	}

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
