package handlers

import (
	"net/http"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/logger"
)

// InfoHandler stores realized price observations
type InfoHandler struct {
	repo   store.Repository
	logger *logger.Logger
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(repo store.Repository, log *logger.Logger) *InfoHandler {
	return &InfoHandler{repo: repo, logger: log}
}

// Add upserts one price point keyed by (stock, date, kind)
// POST /api/v1/info/add/
func (h *InfoHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req contracts.PricePoint
	if errs := decodeAndValidate(r, &req); errs != nil {
		respondInvalid(w, errs)
		return
	}

	if err := h.repo.UpsertPricePoint(r.Context(), req); err != nil {
		h.logger.WithError(err).WithField("stock", req.StockID).Error("Failed to save price point")
		respondError(w, http.StatusInternalServerError, "Failed to save price point")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"stock": req.StockID,
		"date":  req.Date,
		"type":  req.Kind,
		"value": req.Value,
	}).Info("Price point saved")
	respondJSON(w, http.StatusOK, req)
}
