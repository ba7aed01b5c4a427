package predictor

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/prompts"
	"github.com/wonny/signaldesk/internal/toolrpc"
	"github.com/wonny/signaldesk/pkg/logger"
)

func TestCleanNews(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  BYD  raises\n\tguidance ", "BYD raises guidance"},
		{"markup", "<p>Orders <b>up</b> 20%</p><script>track()</script>", "Orders up 20%"},
		{"entities", "Revenue &amp; margin beat", "Revenue & margin beat"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanNews(tt.in); got != tt.want {
				t.Errorf("CleanNews(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanNews_Truncates(t *testing.T) {
	got := CleanNews(strings.Repeat("a", maxNewsRunes+50))
	assert.Len(t, []rune(got), maxNewsRunes)
}

func startPredictor(t *testing.T) *toolrpc.Client {
	t.Helper()

	srv := toolrpc.NewServer("signal-predictor", logger.NewNop(), nil)
	New(prompts.Default(), logger.NewNop()).Register(srv)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	return toolrpc.NewClient("signal-predictor", url, logger.NewNop(), nil, nil)
}

func TestPredict_SamplesWithPredictorPrompt(t *testing.T) {
	client := startPredictor(t)

	var (
		gotMessages []contracts.SamplingMessage
		gotParams   contracts.SamplingParams
	)
	sampler := contracts.SamplingFunc(func(ctx context.Context, messages []contracts.SamplingMessage, params contracts.SamplingParams) (string, error) {
		gotMessages = messages
		gotParams = params
		return "```json\n{\"impact\":\"positive\",\"strength\":0.7}\n```", nil
	})

	raw, err := client.Call(context.Background(), contracts.ToolPredict,
		map[string]interface{}{"news": "<p>BYD Q3 deliveries hit record</p>"},
		contracts.Handlers{Sampling: sampler},
	)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "positive", out["impact"])

	require.Len(t, gotMessages, 1)
	assert.Equal(t, "BYD Q3 deliveries hit record", gotMessages[0].Text)
	assert.Contains(t, gotParams.SystemPrompt, "equity analyst")
	require.NotNil(t, gotParams.Temperature)
	assert.InDelta(t, 0.1, *gotParams.Temperature, 1e-9)
	assert.Equal(t, 256, gotParams.MaxTokens)
}

func TestPredict_MalformedIsToolError(t *testing.T) {
	client := startPredictor(t)

	sampler := contracts.SamplingFunc(func(ctx context.Context, messages []contracts.SamplingMessage, params contracts.SamplingParams) (string, error) {
		return "positive, probably", nil
	})

	_, err := client.Call(context.Background(), contracts.ToolPredict,
		map[string]interface{}{"news": "rumour"},
		contracts.Handlers{Sampling: sampler},
	)
	require.Error(t, err)

	var toolErr *toolrpc.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Message, "malformed prediction")
}

func TestPredict_EmptyNews(t *testing.T) {
	client := startPredictor(t)

	_, err := client.Call(context.Background(), contracts.ToolPredict,
		map[string]interface{}{"news": "  "},
		contracts.Handlers{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "news is empty")
}
