package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/redis"
)

// Recomputer reconciles stored conclusions against realized prices
type Recomputer interface {
	Recompute(ctx context.Context, stockFilter string) ([]contracts.GenerationSummary, error)
}

// HighlightHandler triggers recomputation and serves stored highlights
type HighlightHandler struct {
	repo   store.Repository
	engine Recomputer
	cache  *redis.Cache // nil = no caching
	logger *logger.Logger
}

// NewHighlightHandler creates a new highlight handler
func NewHighlightHandler(repo store.Repository, engine Recomputer, cache *redis.Cache, log *logger.Logger) *HighlightHandler {
	return &HighlightHandler{
		repo:   repo,
		engine: engine,
		cache:  cache,
		logger: log,
	}
}

// Generate recomputes highlights, optionally for ?stock= only
// GET /api/v1/highlights/generate
func (h *HighlightHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := r.URL.Query().Get("stock")

	summaries, err := h.engine.Recompute(ctx, filter)
	if err != nil {
		h.logger.WithError(err).WithField("stock", filter).Error("Highlight recompute failed")
		respondError(w, http.StatusInternalServerError, "Failed to generate highlights")
		return
	}

	// 재계산된 종목의 캐시 무효화
	for _, s := range summaries {
		if h.cache == nil {
			break
		}
		if err := h.cache.Delete(ctx, redis.HighlightListKey(s.StockID)); err != nil {
			h.logger.WithError(err).WithField("stock", s.StockID).Warn("Failed to invalidate highlight cache")
		}
	}

	if summaries == nil {
		summaries = []contracts.GenerationSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// List returns a stock's stored highlights, newest date first
// GET /api/v1/highlights/list/{stock_id}
func (h *HighlightHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := mux.Vars(r)["stock_id"]

	load := func() (interface{}, error) {
		items, err := h.repo.ListHighlights(ctx, stockID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []contracts.Highlight{}
		}
		return contracts.HighlightList{StockID: stockID, Total: len(items), Items: items}, nil
	}

	var list contracts.HighlightList
	var err error
	if h.cache != nil {
		err = h.cache.GetOrSet(ctx, redis.HighlightListKey(stockID), &list, redis.TTLShort, load)
	} else {
		var v interface{}
		if v, err = load(); err == nil {
			list = v.(contracts.HighlightList)
		}
	}
	if err != nil {
		h.logger.WithError(err).WithField("stock", stockID).Error("Failed to list highlights")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve highlights")
		return
	}

	respondJSON(w, http.StatusOK, list)
}
