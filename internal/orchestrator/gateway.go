package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/httputil"
	"github.com/wonny/signaldesk/pkg/logger"
)

// Gateway is the storage-facing API the cycle reads stocks from and persists results to
type Gateway interface {
	ListStocks(ctx context.Context) ([]contracts.Stock, error)
	AddConclusion(ctx context.Context, c contracts.ConclusionRequest) error
	AddPricePoint(ctx context.Context, p contracts.PricePoint) error
	PushStatus(ctx context.Context, value string) error
	PushMessage(ctx context.Context, value string) error
	RecomputeHighlights(ctx context.Context) ([]contracts.GenerationSummary, error)
}

// Gateway API paths
const (
	PathStocksList     = "/api/v1/stocks/list"
	PathConclusionsAdd = "/api/v1/conclusions/add"
	PathInfoAdd        = "/api/v1/info/add/"
	PathSystemStatus   = "/api/v1/highlights/system_status"
	PathLastMessage    = "/api/v1/highlights/last_message"
	PathHighlightsGen  = "/api/v1/highlights/generate"
)

// ValueBody is the body of the status and last-message endpoints
type ValueBody struct {
	Value string `json:"value" validate:"required"`
}

// Retry budget for idempotent gateway calls
const (
	gatewayRetries    = 2
	gatewayRetryDelay = 500 * time.Millisecond
)

// HTTPGateway talks to the gateway over HTTP
// ⭐ SSOT: gateway API 호출은 이 클라이언트에서만
type HTTPGateway struct {
	baseURL string
	http    *httputil.Client // reads, upserts and status pushes: safe to repeat
	insert  *httputil.Client // conclusions/add creates a row per request: never retried
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway client rooted at baseURL
func NewHTTPGateway(baseURL string, log *logger.Logger) *HTTPGateway {
	return newHTTPGateway(baseURL, log, gatewayRetries, gatewayRetryDelay)
}

func newHTTPGateway(baseURL string, log *logger.Logger, retries int, retryDelay time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httputil.New(log).WithRetry(retries, retryDelay),
		insert:  httputil.New(log).DisableRetry(),
	}
}

// ListStocks 전체 종목 조회
func (g *HTTPGateway) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	var stocks []contracts.Stock
	if err := g.http.GetJSON(ctx, g.baseURL+PathStocksList, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// AddConclusion conclusion 저장
func (g *HTTPGateway) AddConclusion(ctx context.Context, c contracts.ConclusionRequest) error {
	return g.insert.PostJSONInto(ctx, g.baseURL+PathConclusionsAdd, c, nil)
}

// AddPricePoint 가격 관측 저장
func (g *HTTPGateway) AddPricePoint(ctx context.Context, p contracts.PricePoint) error {
	return g.http.PostJSONInto(ctx, g.baseURL+PathInfoAdd, p, nil)
}

// PushStatus system status 갱신
func (g *HTTPGateway) PushStatus(ctx context.Context, value string) error {
	return g.http.PostJSONInto(ctx, g.baseURL+PathSystemStatus, ValueBody{Value: value}, nil)
}

// PushMessage last message 갱신
func (g *HTTPGateway) PushMessage(ctx context.Context, value string) error {
	return g.http.PostJSONInto(ctx, g.baseURL+PathLastMessage, ValueBody{Value: value}, nil)
}

// RecomputeHighlights highlight 재계산 트리거
func (g *HTTPGateway) RecomputeHighlights(ctx context.Context) ([]contracts.GenerationSummary, error) {
	var summaries []contracts.GenerationSummary
	if err := g.http.GetJSON(ctx, g.baseURL+PathHighlightsGen, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}
