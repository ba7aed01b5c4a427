package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/tracing"
)

// Tier selects the model quality level of a generation
type Tier string

const (
	TierLow  Tier = "low"  // fast/cheap model
	TierHigh Tier = "high" // stronger model, falls back to low on failure
)

// ParseTier converts a CLI/config value into a Tier
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierLow:
		return TierLow, nil
	case TierHigh:
		return TierHigh, nil
	default:
		return "", fmt.Errorf("unknown tier %q (want low or high)", s)
	}
}

// CompleteOptions are per-call generation parameters
type CompleteOptions struct {
	Thinking    bool     // let the model plan before answering (high tier)
	Temperature *float64 // nil = model default
	MaxTokens   int      // 0 = model default
}

// Backend performs exactly one remote completion against a concrete model
type Backend interface {
	Complete(ctx context.Context, model, prompt string, opts CompleteOptions) (string, error)
}

// Option adjusts a single Generate call
type Option func(*CompleteOptions)

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(o *CompleteOptions) { o.Temperature = &t }
}

// WithMaxTokens caps the completion length
func WithMaxTokens(n int) Option {
	return func(o *CompleteOptions) { o.MaxTokens = n }
}

// Generator is the rate-limited text generator shared by every LLM-dependent step.
// It holds no response cache; the window is its only state.
type Generator struct {
	backend   Backend
	window    *Window
	lowModel  string
	highModel string
	logger    *logger.Logger
	metrics   *metrics.Recorder
	tracer    *tracing.Provider
}

// NewGenerator creates a generator. rec and tp may be nil.
func NewGenerator(backend Backend, window *Window, lowModel, highModel string, log *logger.Logger, rec *metrics.Recorder, tp *tracing.Provider) *Generator {
	if tp == nil {
		tp = tracing.Noop()
	}
	return &Generator{
		backend:   backend,
		window:    window,
		lowModel:  lowModel,
		highModel: highModel,
		logger:    log.Component("generator"),
		metrics:   rec,
		tracer:    tp,
	}
}

// Generate completes prompt at the given tier, blocking as long as the rate window requires.
// A failed high-tier call is retried once at the low tier before the error surfaces.
// Each attempt takes its own window slot.
func (g *Generator) Generate(ctx context.Context, prompt string, tier Tier, opts ...Option) (string, error) {
	var o CompleteOptions
	for _, opt := range opts {
		opt(&o)
	}

	if tier != TierHigh {
		return g.call(ctx, prompt, TierLow, o)
	}

	text, err := g.call(ctx, prompt, TierHigh, o)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	g.logger.WithError(err).Warn("High tier generation failed, falling back to low tier")
	g.metrics.RecordGeneration(string(TierHigh), "fallback")

	text, lowErr := g.call(ctx, prompt, TierLow, o)
	if lowErr != nil {
		return "", fmt.Errorf("high tier: %v; low tier fallback: %w", err, lowErr)
	}
	return text, nil
}

func (g *Generator) call(ctx context.Context, prompt string, tier Tier, o CompleteOptions) (string, error) {
	model := g.lowModel
	if tier == TierHigh {
		model = g.highModel
		o.Thinking = true
	} else {
		o.Thinking = false
	}

	ctx, span := g.tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.tier", string(tier)),
		attribute.String("llm.model", model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	waited, err := g.window.Acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "rate window wait aborted")
		return "", fmt.Errorf("rate window: %w", err)
	}
	if waited > 0 {
		g.metrics.RecordRateWait(waited)
		g.logger.WithFields(map[string]interface{}{
			"tier":      tier,
			"waited":    waited.String(),
			"in_flight": g.window.InFlight(),
		}).Info("Rate limit reached, generation was held back")
	}

	start := time.Now()
	text, err := g.backend.Complete(ctx, model, prompt, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		g.metrics.RecordGeneration(string(tier), "error")
		return "", fmt.Errorf("%s completion (%s): %w", tier, model, err)
	}

	g.metrics.RecordGeneration(string(tier), "ok")
	g.logger.WithFields(map[string]interface{}{
		"tier":     tier,
		"model":    model,
		"duration": time.Since(start).String(),
		"chars":    len(text),
	}).Debug("Generation completed")

	return text, nil
}

// StripCodeFence removes markdown code fences and a leading "json" language tag
// so the text can be decoded as JSON.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	if strings.HasPrefix(strings.ToLower(s), "json") {
		s = strings.TrimSpace(s[len("json"):])
	}
	return s
}
