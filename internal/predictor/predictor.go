// Package predictor serves the signal-predictor tool: one news item in,
// one structured assessment out, generated through the caller's sampling handler.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/llm"
	"github.com/wonny/signaldesk/internal/prompts"
	"github.com/wonny/signaldesk/internal/toolrpc"
	"github.com/wonny/signaldesk/pkg/logger"
)

// maxNewsRunes caps the text forwarded for one prediction
const maxNewsRunes = 4000

var (
	// ErrEmptyNews is returned when nothing is left after cleanup
	ErrEmptyNews = errors.New("news is empty")
	// ErrMalformedPrediction is returned when the sampled text is not JSON
	ErrMalformedPrediction = errors.New("malformed prediction")
)

// Service implements the predict tool
type Service struct {
	prompts *prompts.Set
	logger  *logger.Logger
}

// New creates the predictor service
func New(p *prompts.Set, log *logger.Logger) *Service {
	if p == nil {
		p = prompts.Default()
	}
	return &Service{
		prompts: p,
		logger:  log.Component("predictor"),
	}
}

// Register exposes the service's tools on srv
func (s *Service) Register(srv *toolrpc.Server) {
	srv.Register(contracts.ToolPredict, s.Predict)
}

// Predict handles one predict call
func (s *Service) Predict(ctx context.Context, call *toolrpc.Call) (interface{}, error) {
	var args struct {
		News string `json:"news"`
	}
	if err := call.Bind(&args); err != nil {
		return nil, err
	}

	news := CleanNews(args.News)
	if news == "" {
		return nil, ErrEmptyNews
	}

	cfg := s.prompts.Predictor
	temperature := cfg.Temperature
	text, err := call.Sample(ctx,
		[]contracts.SamplingMessage{{Role: "user", Text: news}},
		contracts.SamplingParams{
			SystemPrompt: cfg.System,
			Temperature:  &temperature,
			MaxTokens:    cfg.MaxTokens,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}

	out := llm.StripCodeFence(text)
	if !json.Valid([]byte(out)) {
		s.logger.WithField("text", truncate(out, 200)).Warn("Prediction is not JSON")
		return nil, fmt.Errorf("%w: %s", ErrMalformedPrediction, truncate(out, 200))
	}

	s.logger.WithField("news_len", len([]rune(news))).Debug("Prediction generated")
	return json.RawMessage(out), nil
}

// CleanNews strips markup, scripts and redundant whitespace from a scraped item
func CleanNews(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	text := raw
	if strings.ContainsAny(raw, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			doc.Find("script, style, noscript").Remove()
			text = doc.Text()
		}
	}

	return truncate(strings.Join(strings.Fields(text), " "), maxNewsRunes)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
