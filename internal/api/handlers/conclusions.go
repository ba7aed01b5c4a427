package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/logger"
)

// ConclusionHandler stores and lists daily conclusions
type ConclusionHandler struct {
	repo   store.Repository
	logger *logger.Logger
}

// NewConclusionHandler creates a new conclusion handler
func NewConclusionHandler(repo store.Repository, log *logger.Logger) *ConclusionHandler {
	return &ConclusionHandler{repo: repo, logger: log}
}

// Add stores a new conclusion. Several may exist for one (stock, date).
// POST /api/v1/conclusions/add
func (h *ConclusionHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req contracts.ConclusionRequest
	if errs := decodeAndValidate(r, &req); errs != nil {
		respondInvalid(w, errs)
		return
	}

	direction, ok := contracts.ParseDirection(req.Prediction)
	if !ok {
		respondInvalid(w, []ValidationError{{
			Code:    "ERR_ONEOF",
			Field:   "prediction",
			Message: "prediction must be one of: up-open, down-open, flat",
		}})
		return
	}

	stored, err := h.repo.AddConclusion(r.Context(), contracts.Conclusion{
		StockID:    req.StockID,
		Date:       req.Date,
		Prediction: direction,
		Confidence: req.Confidence,
		Rationale:  req.Document,
	})
	if err != nil {
		h.logger.WithError(err).WithField("stock", req.StockID).Error("Failed to add conclusion")
		respondError(w, http.StatusInternalServerError, "Failed to save conclusion")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"id":         stored.ID,
		"stock":      stored.StockID,
		"date":       stored.Date,
		"prediction": stored.Prediction,
	}).Info("Conclusion added")
	respondJSON(w, http.StatusCreated, stored)
}

// List returns a stock's conclusions for one date, or every date with "all"
// GET /api/v1/conclusions/{stock}/{date}
func (h *ConclusionHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stockID, date := vars["stock"], vars["date"]

	conclusions, err := h.repo.ListConclusions(r.Context(), stockID)
	if err != nil {
		h.logger.WithError(err).WithField("stock", stockID).Error("Failed to list conclusions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve conclusions")
		return
	}

	if date != "all" {
		filtered := make([]contracts.Conclusion, 0, len(conclusions))
		for _, c := range conclusions {
			if c.Date == date {
				filtered = append(filtered, c)
			}
		}
		conclusions = filtered
	}
	if conclusions == nil {
		conclusions = []contracts.Conclusion{}
	}

	respondJSON(w, http.StatusOK, conclusions)
}
