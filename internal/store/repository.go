// Package store persists stocks, conclusions, price points and highlights.
package store

import (
	"context"
	"errors"

	"github.com/wonny/signaldesk/internal/contracts"
)

// ErrNotFound is returned when a looked-up record does not exist
var ErrNotFound = errors.New("not found")

// Repository is the storage surface behind the gateway API.
// ⭐ SSOT: 저장소 인터페이스 정의는 여기서만
type Repository interface {
	ListStocks(ctx context.Context) ([]contracts.Stock, error)
	GetStock(ctx context.Context, id string) (*contracts.Stock, error)
	UpsertStock(ctx context.Context, s contracts.Stock) error

	// AddConclusion stores a new conclusion, assigning its ID and CreatedAt
	AddConclusion(ctx context.Context, c contracts.Conclusion) (contracts.Conclusion, error)
	// ListConclusions returns a stock's conclusions in (created_at, id) order
	ListConclusions(ctx context.Context, stockID string) ([]contracts.Conclusion, error)

	// UpsertPricePoint replaces the observation keyed by (stock, date, kind)
	UpsertPricePoint(ctx context.Context, p contracts.PricePoint) error
	ListPricePoints(ctx context.Context, stockID string) ([]contracts.PricePoint, error)

	// UpsertHighlight writes h keyed by (stock, date), keeping an existing identity
	UpsertHighlight(ctx context.Context, h contracts.Highlight) error
	HighlightIDs(ctx context.Context, stockID string) (map[string]string, error)
	// ListHighlights returns a stock's highlights, newest date first
	ListHighlights(ctx context.Context, stockID string) ([]contracts.Highlight, error)

	Ping(ctx context.Context) error
}
