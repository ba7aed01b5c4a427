package evaluation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/tracing"
)

// =============================================================================
// Evaluation Engine
// =============================================================================

// Store is the persistence the engine reads predictions and prices from
type Store interface {
	ListStocks(ctx context.Context) ([]contracts.Stock, error)
	// ListConclusions returns a stock's conclusions in (created_at, id) order
	ListConclusions(ctx context.Context, stockID string) ([]contracts.Conclusion, error)
	ListPricePoints(ctx context.Context, stockID string) ([]contracts.PricePoint, error)
	// HighlightIDs maps date -> identity of the highlights already stored for a stock
	HighlightIDs(ctx context.Context, stockID string) (map[string]string, error)
	UpsertHighlight(ctx context.Context, h contracts.Highlight) error
}

// Engine 예측 vs 실현 가격 대조
// ⭐ SSOT: highlight hit/miss 판정 로직은 여기서만
type Engine struct {
	store   Store
	metrics *metrics.Recorder
	tracer  *tracing.Provider
	log     zerolog.Logger
}

// NewEngine 새 엔진 생성
func NewEngine(store Store, rec *metrics.Recorder, tp *tracing.Provider, log zerolog.Logger) *Engine {
	if tp == nil {
		tp = tracing.Noop()
	}
	return &Engine{
		store:   store,
		metrics: rec,
		tracer:  tp,
		log:     log.With().Str("component", "evaluation.engine").Logger(),
	}
}

// =============================================================================
// Recompute
// =============================================================================

// Recompute 하이라이트 재계산 (idempotent)
// stockFilter가 비어 있으면 conclusion이 있는 active 종목 전체, 아니면 해당 종목만
func (e *Engine) Recompute(ctx context.Context, stockFilter string) ([]contracts.GenerationSummary, error) {
	ctx, span := e.tracer.Start(ctx, "evaluation.recompute")
	defer span.End()
	span.SetAttributes(attribute.String("stock_filter", stockFilter))

	targets, err := e.targets(ctx, stockFilter)
	if err != nil {
		return nil, err
	}

	summaries := make([]contracts.GenerationSummary, 0, len(targets))
	for _, stockID := range targets {
		summary, err := e.recomputeStock(ctx, stockID)
		if err != nil {
			return nil, fmt.Errorf("recompute %s: %w", stockID, err)
		}
		if summary == nil {
			continue // no conclusions
		}
		summaries = append(summaries, *summary)
	}

	e.log.Info().
		Int("targets", len(targets)).
		Int("stocks", len(summaries)).
		Msg("highlight recompute completed")

	return summaries, nil
}

func (e *Engine) targets(ctx context.Context, stockFilter string) ([]string, error) {
	if stockFilter != "" {
		return []string{stockFilter}, nil
	}

	stocks, err := e.store.ListStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}

	ids := make([]string, 0, len(stocks))
	for _, s := range contracts.ActiveStocks(stocks) {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (e *Engine) recomputeStock(ctx context.Context, stockID string) (*contracts.GenerationSummary, error) {
	conclusions, err := e.store.ListConclusions(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("list conclusions: %w", err)
	}
	if len(conclusions) == 0 {
		return nil, nil
	}

	points, err := e.store.ListPricePoints(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("list price points: %w", err)
	}

	existing, err := e.store.HighlightIDs(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("list highlight ids: %w", err)
	}

	prices := buildPriceMaps(points)
	retained := retainBest(conclusions)

	dates := make([]string, 0, len(retained))
	for date := range retained {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	items := make([]contracts.Highlight, 0, len(dates))
	for _, date := range dates {
		h := prices.evaluate(retained[date])

		h.ID = existing[date]
		if h.ID == "" {
			h.ID = contracts.HighlightID(stockID, date)
		}
		h.Summary = Summarize(h)

		if err := e.store.UpsertHighlight(ctx, h); err != nil {
			return nil, fmt.Errorf("upsert highlight %s: %w", h.ID, err)
		}
		e.metrics.RecordHighlight(string(h.Outcome))
		items = append(items, h)
	}

	e.log.Debug().
		Str("stock_id", stockID).
		Int("conclusions", len(conclusions)).
		Int("trading_dates", len(prices.dates)).
		Int("generated", len(items)).
		Msg("stock reconciled")

	return &contracts.GenerationSummary{
		StockID:   stockID,
		Generated: len(items),
		Items:     items,
	}, nil
}

// =============================================================================
// Reconciliation
// =============================================================================

// priceMaps 날짜별 시가(15분 평균)/종가 + 정렬된 거래일
type priceMaps struct {
	open  map[string]float64
	close map[string]float64
	dates []string // sorted union of both maps' dates
}

func buildPriceMaps(points []contracts.PricePoint) priceMaps {
	pm := priceMaps{
		open:  make(map[string]float64),
		close: make(map[string]float64),
	}

	seen := make(map[string]bool)
	for _, p := range points {
		switch p.Kind {
		case contracts.PriceOpenWindowAvg:
			pm.open[p.Date] = p.Value
		case contracts.PriceClose:
			pm.close[p.Date] = p.Value
		default:
			continue
		}
		if !seen[p.Date] {
			seen[p.Date] = true
			pm.dates = append(pm.dates, p.Date)
		}
	}

	sort.Strings(pm.dates)
	return pm
}

// prevTradingDate 주어진 날짜보다 엄격히 이전인 가장 최근 거래일
func (pm priceMaps) prevTradingDate(date string) (string, bool) {
	i := sort.SearchStrings(pm.dates, date) // first index with dates[i] >= date
	if i == 0 {
		return "", false
	}
	return pm.dates[i-1], true
}

func (pm priceMaps) evaluate(c contracts.Conclusion) contracts.Highlight {
	h := contracts.Highlight{
		StockID:    c.StockID,
		Date:       c.Date,
		Prediction: c.Prediction,
		Confidence: c.Confidence,
		Rationale:  strings.TrimSpace(c.Rationale),
		Outcome:    contracts.OutcomeUnavailable,
	}

	if v, ok := pm.open[c.Date]; ok {
		h.Opening = contracts.Float(v)
	}
	if prev, ok := pm.prevTradingDate(c.Date); ok {
		h.PrevDate = prev
		if v, ok := pm.close[prev]; ok {
			h.PrevClose = contracts.Float(v)
		}
	}

	if h.Opening == nil || h.PrevClose == nil {
		return h
	}

	diff := *h.Opening - *h.PrevClose
	hit := diff > 0
	if c.Prediction == contracts.DirectionDownOpen {
		hit = diff < 0
	}

	h.Diff = contracts.Float(roundPrice(diff))
	h.Outcome = contracts.OutcomeMiss
	if hit {
		h.Outcome = contracts.OutcomeHit
	}
	return h
}

// retainBest 날짜별 confidence 최대 conclusion만 유지 (동률이면 먼저 본 것)
// up-open/down-open 외의 예측은 평가 대상에서 제외
func retainBest(conclusions []contracts.Conclusion) map[string]contracts.Conclusion {
	best := make(map[string]contracts.Conclusion)
	for _, c := range conclusions {
		if !c.Prediction.Evaluable() || c.Date == "" {
			continue
		}
		prev, ok := best[c.Date]
		if !ok || c.Confidence > prev.Confidence {
			best[c.Date] = c
		}
	}
	return best
}

// roundPrice drops float noise from price arithmetic (110.9-108.5 = 2.4000000000000057)
func roundPrice(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// =============================================================================
// Summary
// =============================================================================

// Summarize 사람이 읽는 한 줄 요약
func Summarize(h contracts.Highlight) string {
	parts := []string{h.Date, "predicted " + string(h.Prediction)}

	if h.Opening != nil {
		parts = append(parts, fmt.Sprintf("opening 15m avg %.2f", *h.Opening))
	} else {
		parts = append(parts, "opening 15m avg unavailable")
	}

	if h.PrevClose != nil && h.PrevDate != "" {
		parts = append(parts, fmt.Sprintf("prev close (%s) %.2f", h.PrevDate, *h.PrevClose))
	} else if h.PrevDate != "" {
		parts = append(parts, fmt.Sprintf("prev close (%s) unavailable", h.PrevDate))
	} else {
		parts = append(parts, "prev close unavailable")
	}

	switch h.Outcome {
	case contracts.OutcomeHit:
		parts = append(parts, "hit")
	case contracts.OutcomeMiss:
		parts = append(parts, "miss")
	default:
		parts = append(parts, "insufficient data")
	}

	return strings.Join(parts, ", ")
}
