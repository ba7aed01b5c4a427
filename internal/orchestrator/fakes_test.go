package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/llm"
	"github.com/wonny/signaldesk/internal/prompts"
	"github.com/wonny/signaldesk/pkg/clock"
	"github.com/wonny/signaldesk/pkg/logger"
)

type fakeGateway struct {
	mu          sync.Mutex
	stocks      []contracts.Stock
	listErr     error
	pushErr     error
	conclusions []contracts.ConclusionRequest
	prices      []contracts.PricePoint
	statuses    []string
	messages    []string
	recomputes   int
	recomputeErr error
	onRecompute  func()
}

func (g *fakeGateway) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stocks, g.listErr
}

func (g *fakeGateway) AddConclusion(ctx context.Context, c contracts.ConclusionRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conclusions = append(g.conclusions, c)
	return nil
}

func (g *fakeGateway) AddPricePoint(ctx context.Context, p contracts.PricePoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices = append(g.prices, p)
	return nil
}

func (g *fakeGateway) PushStatus(ctx context.Context, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushErr != nil {
		return g.pushErr
	}
	g.statuses = append(g.statuses, value)
	return nil
}

func (g *fakeGateway) PushMessage(ctx context.Context, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushErr != nil {
		return g.pushErr
	}
	g.messages = append(g.messages, value)
	return nil
}

func (g *fakeGateway) RecomputeHighlights(ctx context.Context) ([]contracts.GenerationSummary, error) {
	g.mu.Lock()
	g.recomputes++
	hook := g.onRecompute
	g.mu.Unlock()

	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recomputeErr != nil {
		return nil, g.recomputeErr
	}
	return []contracts.GenerationSummary{{StockID: "A", Generated: 1}}, nil
}

type toolCall struct {
	name string
	args map[string]interface{}
}

type toolFunc func(ctx context.Context, name string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error)

type fakeTool struct {
	mu    sync.Mutex
	calls []toolCall
	fn    toolFunc
}

func (f *fakeTool) Call(ctx context.Context, name string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolCall{name: name, args: args})
	f.mu.Unlock()
	return f.fn(ctx, name, args, h)
}

func (f *fakeTool) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

type genCall struct {
	prompt string
	tier   llm.Tier
	opts   llm.CompleteOptions
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []genCall
	fn    func(prompt string, tier llm.Tier) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, tier llm.Tier, opts ...llm.Option) (string, error) {
	var o llm.CompleteOptions
	for _, opt := range opts {
		opt(&o)
	}

	f.mu.Lock()
	f.calls = append(f.calls, genCall{prompt: prompt, tier: tier, opts: o})
	f.mu.Unlock()
	return f.fn(prompt, tier)
}

func (f *fakeGenerator) tierCalls(tier llm.Tier) []genCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []genCall
	for _, c := range f.calls {
		if c.tier == tier {
			out = append(out, c)
		}
	}
	return out
}

func stockID(args map[string]interface{}) string {
	if s, ok := args["stock"].(contracts.Stock); ok {
		return s.ID
	}
	return ""
}

// newCollector answers opening=true and emits a heartbeat plus one news item per search
func newCollector() *fakeTool {
	return &fakeTool{fn: func(ctx context.Context, name string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
		if name == contracts.ToolMarketOpen {
			return json.RawMessage(`{"result":true}`), nil
		}
		if h.Progress != nil {
			_ = h.Progress.OnProgress(ctx, 0, nil, "<wait> searching")
			total := 1.0
			_ = h.Progress.OnProgress(ctx, 1, &total, "news:"+args["src"].(string)+":"+stockID(args))
		}
		return json.RawMessage(`{"result":"done"}`), nil
	}}
}

func newPredictor() *fakeTool {
	return &fakeTool{fn: func(ctx context.Context, name string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
		out, _ := json.Marshal(map[string]interface{}{"impact": "positive", "news": args["news"]})
		return out, nil
	}}
}

func newTrader() *fakeTool {
	return &fakeTool{fn: func(ctx context.Context, name string, args map[string]interface{}, h contracts.Handlers) (json.RawMessage, error) {
		id := stockID(args)
		for _, msg := range []string{
			"<wait> 09:30",
			`{"t":"open_15m_avg","value":10.5,"stock_id":"` + id + `"}`,
			`{"t":"close","value":-1,"stock_id":"` + id + `"}`,
			`{"t":"close","value":11,"stock_id":"` + id + `"}`,
		} {
			_ = h.Progress.OnProgress(ctx, 1, nil, msg)
		}
		return json.RawMessage(`{"result":"ok"}`), nil
	}}
}

const upOpenAnswer = "```json\n{\"prediction\":\"up-open\",\"confidence\":0.8,\"rationale\":\"strong orders\"}\n```"

func newGenerator() *fakeGenerator {
	return &fakeGenerator{fn: func(prompt string, tier llm.Tier) (string, error) {
		return upOpenAnswer, nil
	}}
}

type harness struct {
	orch      *Orchestrator
	gateway   *fakeGateway
	collector *fakeTool
	predictor *fakeTool
	trader    *fakeTool
	generator *fakeGenerator
	clock     *clock.Fake
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	collectAt, err := clock.ParseCheckpoint("08:45:00", loc)
	require.NoError(t, err)
	endOfDay, err := clock.ParseCheckpoint("23:59:59", loc)
	require.NoError(t, err)

	h := &harness{
		gateway: &fakeGateway{stocks: []contracts.Stock{
			{ID: "A", Status: contracts.StockActive},
			{ID: "B", Status: contracts.StockActive},
			{ID: "C", Status: contracts.StockInactive},
		}},
		collector: newCollector(),
		predictor: newPredictor(),
		trader:    newTrader(),
		generator: newGenerator(),
		clock:     clock.NewFake(time.Date(2025, 9, 18, 8, 0, 0, 0, loc)),
	}

	h.orch = New(Deps{
		Collector: h.collector,
		Predictor: h.predictor,
		Trader:    h.trader,
		Gateway:   h.gateway,
		Generator: h.generator,
		Prompts:   prompts.Default(),
		Clock:     h.clock,
		Logger:    logger.NewNop(),
	}, Options{
		Sources:            []string{"yhf", "aks"},
		Location:           loc,
		CollectAt:          collectAt,
		EndOfDayAt:         endOfDay,
		MarketPollInterval: time.Hour,
		MarketClosedSleep:  24 * time.Hour,
		RestartDelay:       2 * time.Minute,
		Concurrency:        1,
		StatusMaxLen:       100,
	})
	return h
}
