package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/redis"
)

// Published status names
const (
	StatusSystem      = "system_status"
	StatusLastMessage = "last_message"
)

// StatusStore keeps the latest published status values
type StatusStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
}

// NewStatusStore returns a Redis-backed store, or an in-process one when Redis is disabled
func NewStatusStore(client *redis.Client, prefix string) StatusStore {
	if client == nil || !client.Enabled() {
		return &memoryStatusStore{values: make(map[string]string)}
	}
	return &redisStatusStore{cache: redis.NewCache(client, prefix)}
}

type redisStatusStore struct {
	cache *redis.Cache
}

func (s *redisStatusStore) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	found, err := s.cache.Get(ctx, redis.StatusKey(name), &value)
	return value, found, err
}

func (s *redisStatusStore) Set(ctx context.Context, name, value string) error {
	return s.cache.Set(ctx, redis.StatusKey(name), value, redis.TTLNone)
}

type memoryStatusStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func (s *memoryStatusStore) Get(ctx context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *memoryStatusStore) Set(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// StatusHandler serves the operator-facing status values
type StatusHandler struct {
	store  StatusStore
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(store StatusStore, log *logger.Logger) *StatusHandler {
	return &StatusHandler{store: store, logger: log}
}

type valueRequest struct {
	Value string `json:"value" validate:"required"`
}

// Get returns the named value, empty when never published
// GET /api/v1/highlights/{name}
func (h *StatusHandler) Get(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, _, err := h.store.Get(r.Context(), name)
		if err != nil {
			h.logger.WithError(err).WithField("name", name).Error("Failed to read status")
			respondError(w, http.StatusInternalServerError, "Failed to read status")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"value": value})
	}
}

// Set stores the named value
// POST /api/v1/highlights/{name}
func (h *StatusHandler) Set(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req valueRequest
		if errs := decodeAndValidate(r, &req); errs != nil {
			respondInvalid(w, errs)
			return
		}

		if err := h.store.Set(r.Context(), name, req.Value); err != nil {
			h.logger.WithError(err).WithField("name", name).Error("Failed to store status")
			respondError(w, http.StatusInternalServerError, "Failed to store status")
			return
		}

		h.logger.WithField("name", name).Debug("Status stored")
		respondJSON(w, http.StatusOK, map[string]string{"value": req.Value})
	}
}
