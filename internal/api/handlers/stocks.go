package handlers

import (
	"net/http"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/logger"
)

// StockHandler handles the operator-maintained stock list
// ⭐ SSOT: 종목 API 핸들러는 이 구조체에서만
type StockHandler struct {
	repo   store.Repository
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(repo store.Repository, log *logger.Logger) *StockHandler {
	return &StockHandler{repo: repo, logger: log}
}

// List returns every stock
// GET /api/v1/stocks/list
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.repo.ListStocks(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list stocks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stocks")
		return
	}
	respondJSON(w, http.StatusOK, stocks)
}

// Upsert creates or edits a stock. Status defaults to active.
// POST /api/v1/stocks/upsert
func (h *StockHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req contracts.Stock
	if errs := decodeAndValidate(r, &req); errs != nil {
		respondInvalid(w, errs)
		return
	}
	if req.Status == "" {
		req.Status = contracts.StockActive
	}

	if err := h.repo.UpsertStock(r.Context(), req); err != nil {
		h.logger.WithError(err).WithField("stock", req.ID).Error("Failed to upsert stock")
		respondError(w, http.StatusInternalServerError, "Failed to save stock")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"stock":  req.ID,
		"status": req.Status,
	}).Info("Stock saved")
	respondJSON(w, http.StatusOK, req)
}
