package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/signaldesk/internal/contracts"
)

// Memory is an in-process Repository for development runs and tests.
// Contents are lost on restart.
type Memory struct {
	mu          sync.RWMutex
	stocks      map[string]contracts.Stock
	conclusions []contracts.Conclusion // insertion order == (created_at, id) order
	prices      map[priceKey]contracts.PricePoint
	highlights  map[highlightKey]contracts.Highlight
	now         func() time.Time
}

type priceKey struct {
	stock, date string
	kind        contracts.PriceKind
}

type highlightKey struct {
	stock, date string
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		stocks:     make(map[string]contracts.Stock),
		prices:     make(map[priceKey]contracts.PricePoint),
		highlights: make(map[highlightKey]contracts.Highlight),
		now:        time.Now,
	}
}

// Ping always succeeds
func (m *Memory) Ping(ctx context.Context) error { return nil }

// ListStocks returns stocks sorted by id
func (m *Memory) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contracts.Stock, 0, len(m.stocks))
	for _, s := range m.stocks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStock returns ErrNotFound for unknown ids
func (m *Memory) GetStock(ctx context.Context, id string) (*contracts.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// UpsertStock inserts or replaces a stock
func (m *Memory) UpsertStock(ctx context.Context, s contracts.Stock) error {
	if s.ID == "" {
		return fmt.Errorf("stock id is required")
	}
	if s.Status == "" {
		s.Status = contracts.StockInactive
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[s.ID] = s
	return nil
}

// AddConclusion appends a conclusion with a fresh id
func (m *Memory) AddConclusion(ctx context.Context, c contracts.Conclusion) (contracts.Conclusion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = uuid.NewString()
	c.CreatedAt = m.now().UTC()
	m.conclusions = append(m.conclusions, c)
	return c, nil
}

// ListConclusions returns a stock's conclusions in insertion order
func (m *Memory) ListConclusions(ctx context.Context, stockID string) ([]contracts.Conclusion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.Conclusion
	for _, c := range m.conclusions {
		if c.StockID == stockID {
			out = append(out, c)
		}
	}
	return out, nil
}

// UpsertPricePoint replaces the observation keyed by (stock, date, kind)
func (m *Memory) UpsertPricePoint(ctx context.Context, p contracts.PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[priceKey{p.StockID, p.Date, p.Kind}] = p
	return nil
}

// ListPricePoints returns a stock's observations ordered by (date, kind)
func (m *Memory) ListPricePoints(ctx context.Context, stockID string) ([]contracts.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.PricePoint
	for k, p := range m.prices {
		if k.stock == stockID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// UpsertHighlight writes h keyed by (stock, date); an existing id is kept
func (m *Memory) UpsertHighlight(ctx context.Context, h contracts.Highlight) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := highlightKey{h.StockID, h.Date}
	if prev, ok := m.highlights[key]; ok {
		h.ID = prev.ID
	}
	m.highlights[key] = h
	return nil
}

// HighlightIDs maps date -> id for a stock
func (m *Memory) HighlightIDs(ctx context.Context, stockID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]string)
	for k, h := range m.highlights {
		if k.stock == stockID {
			ids[k.date] = h.ID
		}
	}
	return ids, nil
}

// ListHighlights returns a stock's highlights, newest date first
func (m *Memory) ListHighlights(ctx context.Context, stockID string) ([]contracts.Highlight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.Highlight
	for k, h := range m.highlights {
		if k.stock == stockID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
