package toolrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/pkg/logger"
)

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

type recordedProgress struct {
	progress float64
	total    *float64
	message  string
}

func TestCall_ProgressThenResult(t *testing.T) {
	s := NewServer("trader", logger.NewNop(), nil)
	s.Register("trade", func(ctx context.Context, call *Call) (interface{}, error) {
		var args struct {
			Stock contracts.Stock `json:"stock"`
		}
		if err := call.Bind(&args); err != nil {
			return nil, err
		}
		total := 2.0
		_ = call.Heartbeat("waiting for 09:45:00")
		_ = call.ReportProgress(1, &total, fmt.Sprintf(`{"t":"open_15m_avg","value":110.9,"stock_id":%q}`, args.Stock.ID))
		_ = call.ReportProgress(2, &total, fmt.Sprintf(`{"t":"close","value":111.2,"stock_id":%q}`, args.Stock.ID))
		return map[string]string{"result": "ok"}, nil
	})

	client := NewClient("trader", startServer(t, s), logger.NewNop(), nil, nil)

	var (
		mu  sync.Mutex
		got []recordedProgress
	)
	handler := contracts.ProgressFunc(func(ctx context.Context, progress float64, total *float64, message string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, recordedProgress{progress, total, message})
		return nil
	})

	result, err := client.Call(context.Background(), "trade",
		map[string]interface{}{"stock": contracts.Stock{ID: "sz002594"}},
		contracts.Handlers{Progress: handler})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(result))

	require.Len(t, got, 3)
	assert.True(t, contracts.IsHeartbeat(got[0].message))
	assert.Nil(t, got[0].total)
	require.NotNil(t, got[1].total)
	assert.Equal(t, 2.0, *got[1].total)
	assert.Contains(t, got[1].message, "open_15m_avg")
	assert.Contains(t, got[2].message, `"close"`)
}

func TestCall_SamplingRoundTrip(t *testing.T) {
	s := NewServer("predictor", logger.NewNop(), nil)
	s.Register("predict", func(ctx context.Context, call *Call) (interface{}, error) {
		var args struct {
			News string `json:"news"`
		}
		if err := call.Bind(&args); err != nil {
			return nil, err
		}
		text, err := call.Sample(ctx,
			[]contracts.SamplingMessage{{Role: "user", Text: args.News}},
			contracts.SamplingParams{SystemPrompt: "classify", Temperature: contracts.Float(0.1), MaxTokens: 64})
		if err != nil {
			return nil, err
		}
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, err
		}
		return out, nil
	})

	client := NewClient("predictor", startServer(t, s), logger.NewNop(), nil, nil)

	var gotParams contracts.SamplingParams
	sampler := contracts.SamplingFunc(func(ctx context.Context, messages []contracts.SamplingMessage, params contracts.SamplingParams) (string, error) {
		gotParams = params
		require.Len(t, messages, 1)
		return fmt.Sprintf(`{"news":%q,"impact":"positive"}`, messages[0].Text), nil
	})

	result, err := client.Call(context.Background(), "predict",
		map[string]interface{}{"news": "BYD deliveries up"},
		contracts.Handlers{Sampling: sampler})
	require.NoError(t, err)
	assert.JSONEq(t, `{"news":"BYD deliveries up","impact":"positive"}`, string(result))
	assert.Equal(t, "classify", gotParams.SystemPrompt)
	assert.Equal(t, 64, gotParams.MaxTokens)
	require.NotNil(t, gotParams.Temperature)
	assert.InDelta(t, 0.1, *gotParams.Temperature, 1e-9)
}

func TestCall_SamplingWithoutHandler(t *testing.T) {
	s := NewServer("predictor", logger.NewNop(), nil)
	s.Register("predict", func(ctx context.Context, call *Call) (interface{}, error) {
		text, err := call.Sample(ctx, nil, contracts.SamplingParams{})
		if err != nil {
			return nil, err
		}
		return text, nil
	})

	client := NewClient("predictor", startServer(t, s), logger.NewNop(), nil, nil)
	_, err := client.Call(context.Background(), "predict", nil, contracts.Handlers{})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Contains(t, toolErr.Message, "sampling")
}

func TestCall_ToolErrorAndUnknownTool(t *testing.T) {
	s := NewServer("collector", logger.NewNop(), nil)
	s.Register("search", func(ctx context.Context, call *Call) (interface{}, error) {
		return nil, errors.New("source unreachable")
	})
	s.Register("panics", func(ctx context.Context, call *Call) (interface{}, error) {
		panic("boom")
	})

	client := NewClient("collector", startServer(t, s), logger.NewNop(), nil, nil)

	tests := []struct {
		tool    string
		message string
	}{
		{tool: "search", message: "source unreachable"},
		{tool: "missing", message: "unknown tool"},
		{tool: "panics", message: "panicked"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			_, err := client.Call(context.Background(), tt.tool, nil, contracts.Handlers{})
			var toolErr *ToolError
			require.True(t, errors.As(err, &toolErr), "expected ToolError, got %v", err)
			assert.Equal(t, tt.tool, toolErr.Tool)
			assert.Contains(t, toolErr.Message, tt.message)
		})
	}
}

func TestCall_ProgressHandlerErrorDoesNotAbort(t *testing.T) {
	s := NewServer("collector", logger.NewNop(), nil)
	s.Register("search", func(ctx context.Context, call *Call) (interface{}, error) {
		_ = call.ReportProgress(1, nil, "first")
		_ = call.ReportProgress(2, nil, "second")
		return true, nil
	})

	client := NewClient("collector", startServer(t, s), logger.NewNop(), nil, nil)

	calls := 0
	handler := contracts.ProgressFunc(func(ctx context.Context, progress float64, total *float64, message string) error {
		calls++
		return errors.New("predictor down")
	})

	result, err := client.Call(context.Background(), "search", nil, contracts.Handlers{Progress: handler})
	require.NoError(t, err)
	assert.Equal(t, "true", string(result))
	assert.Equal(t, 2, calls)
}

func TestCall_DialFailure(t *testing.T) {
	client := NewClient("collector", "ws://127.0.0.1:1/mcp", logger.NewNop(), nil, nil)
	_, err := client.Call(context.Background(), "search", nil, contracts.Handlers{})
	require.Error(t, err)

	var toolErr *ToolError
	assert.False(t, errors.As(err, &toolErr))
}

func TestCall_ContextCancelled(t *testing.T) {
	s := NewServer("trader", logger.NewNop(), nil)
	s.Register("trade", func(ctx context.Context, call *Call) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	client := NewClient("trader", startServer(t, s), logger.NewNop(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, "trade", nil, contracts.Handlers{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrame_ZeroTemperatureSurvives(t *testing.T) {
	data, err := json.Marshal(frame{Type: frameSample, ID: "1", Params: &contracts.SamplingParams{Temperature: contracts.Float(0)}})
	require.NoError(t, err)

	var back frame
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Params)
	require.NotNil(t, back.Params.Temperature)
	assert.Equal(t, 0.0, *back.Params.Temperature)

	data, err = json.Marshal(frame{Type: frameSample, ID: "2", Params: &contracts.SamplingParams{}})
	require.NoError(t, err)
	var unset frame
	require.NoError(t, json.Unmarshal(data, &unset))
	require.NotNil(t, unset.Params)
	assert.Nil(t, unset.Params.Temperature)
}
