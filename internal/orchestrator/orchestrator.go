// Package orchestrator runs the daily prediction cycle: wait for the market,
// collect evidence per stock, conclude, monitor trading and reconcile highlights.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/llm"
	"github.com/wonny/signaldesk/internal/prompts"
	"github.com/wonny/signaldesk/pkg/clock"
	"github.com/wonny/signaldesk/pkg/config"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/tracing"
)

// TextGenerator is the rate-limited generation entry point
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, tier llm.Tier, opts ...llm.Option) (string, error)
}

// Deps are the collaborators of the cycle
type Deps struct {
	Collector contracts.ToolInvoker
	Predictor contracts.ToolInvoker
	Trader    contracts.ToolInvoker
	Gateway   Gateway
	Generator TextGenerator
	Prompts   *prompts.Set
	Clock     clock.Clock
	Logger    *logger.Logger
	Metrics   *metrics.Recorder
	Tracer    *tracing.Provider
}

// Options are the externally configured knobs of the cycle
type Options struct {
	Sources            []string
	Location           *time.Location
	CollectAt          *clock.Checkpoint
	EndOfDayAt         *clock.Checkpoint
	MarketPollInterval time.Duration
	MarketClosedSleep  time.Duration
	RestartDelay       time.Duration
	Concurrency        int
	StatusMaxLen       int
}

// OptionsFromConfig builds cycle options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc := cfg.Schedule.Location()

	collectAt, err := clock.ParseCheckpoint(cfg.Schedule.CollectAt, loc)
	if err != nil {
		return Options{}, fmt.Errorf("COLLECT_AT: %w", err)
	}
	endOfDay, err := clock.ParseCheckpoint(cfg.Schedule.EndOfDayAt, loc)
	if err != nil {
		return Options{}, fmt.Errorf("END_OF_DAY_AT: %w", err)
	}

	return Options{
		Sources:            cfg.InfoSources,
		Location:           loc,
		CollectAt:          collectAt,
		EndOfDayAt:         endOfDay,
		MarketPollInterval: cfg.Schedule.MarketPollInterval,
		MarketClosedSleep:  cfg.Schedule.MarketClosedSleep,
		RestartDelay:       cfg.Schedule.RestartDelay,
		Concurrency:        cfg.Schedule.PipelineConcurrency,
		StatusMaxLen:       cfg.StatusMaxLen,
	}, nil
}

// Orchestrator drives the daily cycle
// ⭐ SSOT: 사이클 상태 전이는 여기서만
type Orchestrator struct {
	collector contracts.ToolInvoker
	predictor contracts.ToolInvoker
	trader    contracts.ToolInvoker
	gateway   Gateway
	generator TextGenerator
	prompts   *prompts.Set
	clock     clock.Clock
	opts      Options

	status  *StatusPublisher
	history *History
	logger  *logger.Logger
	metrics *metrics.Recorder
	tracer  *tracing.Provider
}

// New creates an orchestrator
func New(d Deps, opts Options) *Orchestrator {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Prompts == nil {
		d.Prompts = prompts.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	log := d.Logger.Component("orchestrator")
	return &Orchestrator{
		collector: d.Collector,
		predictor: d.Predictor,
		trader:    d.Trader,
		gateway:   d.Gateway,
		generator: d.Generator,
		prompts:   d.Prompts,
		clock:     d.Clock,
		opts:      opts,
		status:    NewStatusPublisher(d.Gateway, opts.StatusMaxLen, d.Logger, d.Metrics),
		history:   &History{},
		logger:    log,
		metrics:   d.Metrics,
		tracer:    d.Tracer,
	}
}

// History returns the results of past cycles
func (o *Orchestrator) History() *History {
	return o.history
}

// Run loops over daily cycles until ctx is cancelled.
// No cycle failure ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.WithFields(map[string]interface{}{
		"sources":     o.opts.Sources,
		"concurrency": o.opts.Concurrency,
		"collect_at":  o.opts.CollectAt.String(),
		"end_of_day":  o.opts.EndOfDayAt.String(),
	}).Info("Orchestrator started")

	for {
		result := o.RunCycle(ctx)
		if err := ctx.Err(); err != nil {
			o.logStopped()
			return err
		}
		o.history.Add(result)

		entry := o.logger.WithFields(map[string]interface{}{
			"date":         result.Date,
			"reached":      result.Reached,
			"stocks":       result.Stocks,
			"concluded":    result.Concluded,
			"failures":     result.Failures,
			"duration_ms":  result.DurationMs,
			"success_rate": o.history.SuccessRate(),
		})
		if result.Success {
			entry.Info("Cycle completed")
		} else {
			entry.WithField("error", result.Error).Error("Cycle aborted")
		}

		if err := o.awaitNextCycle(ctx); err != nil {
			o.logStopped()
			return err
		}
	}
}

// recentCycles is how many past cycles the stop summary lists
const recentCycles = 7

// logStopped summarizes the retained cycle history on shutdown
func (o *Orchestrator) logStopped() {
	recent := make([]string, 0, recentCycles)
	for _, r := range o.history.Latest(recentCycles) {
		outcome := "ok"
		if !r.Success {
			outcome = "failed@" + string(r.Reached)
		}
		recent = append(recent, r.Date+":"+outcome)
	}

	o.logger.WithFields(map[string]interface{}{
		"cycles":       len(o.history.Latest(maxHistory)),
		"failed":       len(o.history.Failed()),
		"success_rate": o.history.SuccessRate(),
		"recent":       recent,
	}).Info("Orchestrator stopped")
}

// RunCycle executes one pass from AwaitOpen through RecomputeHighlights.
// Panics and cycle-level errors are captured in the result.
func (o *Orchestrator) RunCycle(ctx context.Context) (result contracts.CycleResult) {
	start := o.clock.Now()
	result = contracts.CycleResult{Failures: map[string]int{}}

	defer func() {
		if r := recover(); r != nil {
			err := stageErr(result.Reached, "", KindCycle, fmt.Errorf("panic: %v", r))
			result.Success = false
			result.Error = err.Error()
			result.Failures[string(KindCycle)]++
			o.logger.WithField("panic", fmt.Sprint(r)).Error("Cycle panicked")
		}
		result.DurationMs = o.clock.Now().Sub(start).Milliseconds()
	}()

	if err := o.cycle(ctx, &result); err != nil {
		result.Error = err.Error()
		if ctx.Err() == nil {
			result.Failures[string(KindOf(err))]++
		}
		return result
	}
	result.Success = true
	return result
}

// cycle walks the states from AwaitOpen up to AwaitNextCycle, which Run handles
func (o *Orchestrator) cycle(ctx context.Context, res *contracts.CycleResult) error {
	tally := &failureTally{counts: res.Failures}

	steps := map[contracts.CycleState]func(context.Context) error{
		contracts.StateAwaitOpen: func(ctx context.Context) error {
			if err := o.awaitOpen(ctx); err != nil {
				return err
			}
			res.Date = clock.TradingDate(o.clock.Now(), o.opts.Location)
			return nil
		},
		contracts.StateCollectInfo: func(ctx context.Context) error {
			if err := clock.WaitUntil(ctx, o.clock, o.opts.CollectAt); err != nil {
				return err
			}
			stocks, err := o.activeStocks(ctx)
			if err != nil {
				return stageErr(contracts.StateCollectInfo, "", KindCycle, err)
			}
			res.Stocks = len(stocks)
			res.Concluded = o.forEachStock(ctx, res.Reached, tally, stocks, func(ctx context.Context, s contracts.Stock) error {
				return o.predictStock(ctx, s, res.Date, tally)
			})
			return nil
		},
		// conclusions are stored per stock as soon as its sources are exhausted
		contracts.StatePredictConclude: func(ctx context.Context) error {
			o.logger.WithFields(map[string]interface{}{
				"stocks":    res.Stocks,
				"concluded": res.Concluded,
			}).Info("Conclusions stored")
			return nil
		},
		contracts.StateMonitorTrading: func(ctx context.Context) error {
			stocks, err := o.activeStocks(ctx)
			if err != nil {
				return stageErr(contracts.StateMonitorTrading, "", KindCycle, err)
			}
			o.forEachStock(ctx, res.Reached, tally, stocks, func(ctx context.Context, s contracts.Stock) error {
				return o.monitorStock(ctx, s, res.Date)
			})
			return nil
		},
		contracts.StateRecomputeHighlights: func(ctx context.Context) error {
			summaries, err := o.gateway.RecomputeHighlights(ctx)
			if err != nil {
				return stageErr(contracts.StateRecomputeHighlights, "", KindTransient, err)
			}
			generated := 0
			for _, s := range summaries {
				generated += s.Generated
			}
			o.logger.WithFields(map[string]interface{}{
				"stocks":     len(summaries),
				"highlights": generated,
			}).Info("Highlights recomputed")
			return nil
		},
	}

	for state := contracts.StateAwaitOpen; state != contracts.StateAwaitNextCycle; state = state.Next() {
		if err := o.stage(ctx, res, state, steps[state]); err != nil {
			return err
		}
	}
	return nil
}

// stage publishes the state's status and times fn
func (o *Orchestrator) stage(ctx context.Context, res *contracts.CycleResult, state contracts.CycleState, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res.Reached = state
	o.status.Status(ctx, state.Status())
	o.logger.WithField("state", state).Debug("Entering state")

	ctx, span := o.tracer.Start(ctx, "cycle."+strings.ToLower(string(state)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordStage(string(state), time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// awaitOpen polls the market-open check until it reports open
func (o *Orchestrator) awaitOpen(ctx context.Context) error {
	for {
		o.status.Status(ctx, contracts.StateAwaitOpen.Status())

		open, err := o.marketOpen(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.WithError(err).Warn("Market status check failed")
			if err := o.clock.Sleep(ctx, o.opts.MarketPollInterval); err != nil {
				return err
			}
		case open:
			o.logger.Info("Market open")
			return nil
		default:
			o.status.Status(ctx, contracts.StatusMarketClosed)
			o.logger.WithField("sleep", o.opts.MarketClosedSleep.String()).Info("Market closed")
			if err := o.clock.Sleep(ctx, o.opts.MarketClosedSleep); err != nil {
				return err
			}
		}
	}
}

func (o *Orchestrator) marketOpen(ctx context.Context) (bool, error) {
	raw, err := o.collector.Call(ctx, contracts.ToolMarketOpen, map[string]interface{}{}, contracts.Handlers{})
	if err != nil {
		return false, err
	}

	var out struct {
		Result bool `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("decode %s result: %w", contracts.ToolMarketOpen, err)
	}
	return out.Result, nil
}

func (o *Orchestrator) activeStocks(ctx context.Context) ([]contracts.Stock, error) {
	stocks, err := o.gateway.ListStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	return contracts.ActiveStocks(stocks), nil
}

// forEachStock runs fn per stock with the configured concurrency cap.
// A failing or panicking stock never stops the others. Returns the number of successes.
func (o *Orchestrator) forEachStock(ctx context.Context, state contracts.CycleState, tally *failureTally, stocks []contracts.Stock, fn func(context.Context, contracts.Stock) error) int {
	var (
		g  errgroup.Group
		mu sync.Mutex
		ok int
	)
	g.SetLimit(o.opts.Concurrency)

	for _, s := range stocks {
		s := s
		g.Go(func() error {
			if err := o.isolate(ctx, state, s, fn); err != nil {
				tally.add(string(KindOf(err)))
				o.logger.WithError(err).WithFields(map[string]interface{}{
					"stock": s.ID,
					"kind":  KindOf(err),
				}).Warn("Stock skipped")
				return nil
			}

			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ok
}

// failureTally counts failures by key for one cycle.
// Concurrent stock pipelines share it.
type failureTally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (t *failureTally) add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
}

// predictFailureKey keeps failed predictor calls apart from failed stocks
func predictFailureKey(kind ErrorKind) string {
	return "predict_" + string(kind)
}

func (o *Orchestrator) isolate(ctx context.Context, state contracts.CycleState, s contracts.Stock, fn func(context.Context, contracts.Stock) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stageErr(state, s.ID, KindCycle, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, span := o.tracer.Start(ctx, "cycle.stock")
	defer span.End()
	span.SetAttributes(attribute.String("stock", s.ID), attribute.String("state", string(state)))

	return fn(ctx, s)
}

// awaitNextCycle waits for the end-of-day checkpoint plus the restart delay
func (o *Orchestrator) awaitNextCycle(ctx context.Context) error {
	o.status.Status(ctx, contracts.StateAwaitNextCycle.Status())

	if err := clock.WaitUntil(ctx, o.clock, o.opts.EndOfDayAt); err != nil {
		return err
	}
	return o.clock.Sleep(ctx, o.opts.RestartDelay)
}
