package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/logger"
)

func TestHTTPGateway_AddConclusionIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathConclusionsAdd, r.URL.Path)
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gw := newHTTPGateway(server.URL, logger.NewNop(), 3, time.Millisecond)
	draft := contracts.ConclusionDraft{Prediction: contracts.DirectionUpOpen, Confidence: 0.7}

	err := gw.AddConclusion(context.Background(), contracts.NewConclusionRequest("A", "20250918", draft))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestHTTPGateway_IdempotentCallsAreRetried(t *testing.T) {
	var statusAttempts, stockAttempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathSystemStatus:
			if atomic.AddInt32(&statusAttempts, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			var body ValueBody
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "monitoring trading", body.Value)
			w.WriteHeader(http.StatusOK)
		case PathStocksList:
			if atomic.AddInt32(&stockAttempts, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode([]contracts.Stock{{ID: "A", Status: contracts.StockActive}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gw := newHTTPGateway(server.URL+"/", logger.NewNop(), 3, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, gw.PushStatus(ctx, "monitoring trading"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&statusAttempts))

	stocks, err := gw.ListStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "A", stocks[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stockAttempts))
}

func TestHTTPGateway_RecomputeHighlights(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathHighlightsGen, r.URL.Path)
		w.Write([]byte(`[{"stock_id":"A","generated_count":2,"items":[]}]`))
	}))
	defer server.Close()

	summaries, err := NewHTTPGateway(server.URL, logger.NewNop()).RecomputeHighlights(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Generated)
}
