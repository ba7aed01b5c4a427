package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/llm"
	"github.com/wonny/signaldesk/pkg/logger"
)

// evidence is the per-stock memory of prediction results.
// Each collect pass owns its own instance.
type evidence struct {
	o      *Orchestrator
	stock  contracts.Stock
	logger *logger.Logger
	tally  *failureTally

	mu     sync.Mutex
	items  []json.RawMessage
	failed int
}

var _ contracts.ProgressHandler = (*evidence)(nil)

// OnProgress forwards one collected payload to the predictor and keeps the result
func (e *evidence) OnProgress(ctx context.Context, progress float64, total *float64, message string) error {
	entry := e.logger.WithField("progress", progress)
	if total != nil {
		entry = entry.WithField("total", *total)
	}
	entry.Debug("Collector progress")

	if contracts.IsHeartbeat(message) || strings.TrimSpace(message) == "" {
		return nil
	}

	result, err := e.o.predictor.Call(ctx, contracts.ToolPredict,
		map[string]interface{}{"news": message},
		contracts.Handlers{Sampling: e.o.sampler()},
	)
	if err != nil {
		serr := stageErr(contracts.StateCollectInfo, e.stock.ID, KindTransient, err)
		e.tally.add(predictFailureKey(serr.Kind))
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
		return serr
	}

	e.mu.Lock()
	e.items = append(e.items, result)
	e.mu.Unlock()
	return nil
}

// snapshot returns the collected items and how many predictor calls failed
func (e *evidence) snapshot() ([]json.RawMessage, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]json.RawMessage, len(e.items))
	copy(out, e.items)
	return out, e.failed
}

// predictStock collects evidence from every source in order, then concludes
func (o *Orchestrator) predictStock(ctx context.Context, stock contracts.Stock, date string, tally *failureTally) error {
	log := o.logger.WithFields(map[string]interface{}{"stock": stock.ID, "date": date})
	ev := &evidence{o: o, stock: stock, logger: log, tally: tally}

	for _, src := range o.opts.Sources {
		_, err := o.collector.Call(ctx, contracts.ToolSearch,
			map[string]interface{}{"src": src, "stock": stock},
			contracts.Handlers{Progress: ev},
		)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("source", src).Warn("Source skipped")
			continue
		}
		log.WithField("source", src).Debug("Source collected")
	}

	items, failed := ev.snapshot()
	if len(items) == 0 && failed > 0 {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindTransient,
			fmt.Errorf("%w: %d predict call(s) failed", ErrNoEvidence, failed))
	}
	return o.conclude(ctx, stock, date, items)
}

// conclude asks the high tier for the day's conclusion and persists it
func (o *Orchestrator) conclude(ctx context.Context, stock contracts.Stock, date string, items []json.RawMessage) error {
	if len(items) == 0 {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindTransient, ErrNoEvidence)
	}

	body, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindCycle, err)
	}
	prompt := o.prompts.Conclusion.Instruction + "\n" + string(body)

	text, err := o.generator.Generate(ctx, prompt, llm.TierHigh)
	if err != nil {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindTransient, err)
	}

	draft, err := ParseConclusion(text)
	if err != nil {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindMalformed, err)
	}

	if err := o.gateway.AddConclusion(ctx, contracts.NewConclusionRequest(stock.ID, date, draft)); err != nil {
		return stageErr(contracts.StatePredictConclude, stock.ID, KindTransient, fmt.Errorf("store conclusion: %w", err))
	}

	o.logger.WithFields(map[string]interface{}{
		"stock":      stock.ID,
		"date":       date,
		"prediction": draft.Prediction,
		"confidence": draft.Confidence,
		"evidence":   len(items),
	}).Info("Conclusion stored")
	return nil
}

// monitorStock runs the trader tool and persists every reported price
func (o *Orchestrator) monitorStock(ctx context.Context, stock contracts.Stock, date string) error {
	log := o.logger.WithFields(map[string]interface{}{"stock": stock.ID, "date": date})

	handler := contracts.ProgressFunc(func(ctx context.Context, progress float64, total *float64, message string) error {
		if contracts.IsHeartbeat(message) || strings.TrimSpace(message) == "" {
			return nil
		}

		var payload contracts.PricePayload
		if err := json.Unmarshal([]byte(message), &payload); err != nil {
			return stageErr(contracts.StateMonitorTrading, stock.ID, KindMalformed, fmt.Errorf("decode price payload: %w", err))
		}
		if payload.StockID == "" {
			payload.StockID = stock.ID
		}
		if err := payload.Validate(); err != nil {
			log.WithError(err).WithField("type", payload.Type).Info("Price not recorded")
			return nil
		}

		if err := o.gateway.AddPricePoint(ctx, payload.PricePoint(date)); err != nil {
			return stageErr(contracts.StateMonitorTrading, stock.ID, KindTransient, fmt.Errorf("store price: %w", err))
		}
		log.WithFields(map[string]interface{}{
			"type":  payload.Type,
			"value": payload.Value,
		}).Info("Price recorded")
		return nil
	})

	_, err := o.trader.Call(ctx, contracts.ToolTrade,
		map[string]interface{}{"stock": stock},
		contracts.Handlers{Progress: handler},
	)
	if err != nil {
		return stageErr(contracts.StateMonitorTrading, stock.ID, KindTransient, err)
	}
	return nil
}

// sampler answers the predictor's sampling requests with the low tier
func (o *Orchestrator) sampler() contracts.SamplingHandler {
	return contracts.SamplingFunc(o.sample)
}

func (o *Orchestrator) sample(ctx context.Context, messages []contracts.SamplingMessage, params contracts.SamplingParams) (string, error) {
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text)
	}
	conversation := strings.Join(texts, "\n")
	o.status.Message(ctx, conversation)

	var opts []llm.Option
	if params.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*params.Temperature))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(params.MaxTokens))
	}

	prompt := o.prompts.SystemOrDefault(params.SystemPrompt) + "\n" + conversation
	text, err := o.generator.Generate(ctx, prompt, llm.TierLow, opts...)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}
