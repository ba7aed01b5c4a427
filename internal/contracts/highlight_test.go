package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlight_MarshalEvaluated(t *testing.T) {
	h := Highlight{
		ID:         HighlightID("sz002594", "20250918"),
		StockID:    "sz002594",
		Date:       "20250918",
		Prediction: DirectionUpOpen,
		Confidence: 0.9,
		Opening:    Float(110.9),
		PrevClose:  Float(108.5),
		PrevDate:   "20250917",
		Diff:       Float(-1.0),
		Outcome:    OutcomeMiss,
	}

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "sz002594_20250918_highlight", raw["id"])
	assert.Equal(t, false, raw["hit"])
	assert.Equal(t, 110.9, raw["open_15min_price"])
	assert.Equal(t, 108.5, raw["last_close_price"])

	// an evaluated diff of -1.0 must survive the round trip
	var back Highlight
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Diff)
	assert.Equal(t, -1.0, *back.Diff)
	assert.Equal(t, OutcomeMiss, back.Outcome)
}

func TestHighlight_MarshalUnavailable(t *testing.T) {
	h := Highlight{
		ID:         HighlightID("sz002594", "20250918"),
		StockID:    "sz002594",
		Date:       "20250918",
		Prediction: DirectionDownOpen,
		Confidence: 0.7,
		Opening:    Float(110.9),
		Outcome:    OutcomeUnavailable,
	}

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "unavailable", raw["hit"])
	assert.Equal(t, MissingValue, raw["diff"])
	assert.Equal(t, MissingValue, raw["last_close_price"])
	assert.NotContains(t, raw, "prev_date")

	var back Highlight
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Nil(t, back.Diff)
	assert.Nil(t, back.PrevClose)
	require.NotNil(t, back.Opening)
	assert.Equal(t, 110.9, *back.Opening)
	assert.Equal(t, OutcomeUnavailable, back.Outcome)
}

func TestPricePayload_Validate(t *testing.T) {
	ok := PricePayload{Type: PriceOpenWindowAvg, Value: 110.9, StockID: "sz002594"}
	assert.NoError(t, ok.Validate())

	assert.Error(t, PricePayload{Type: "volume", Value: 1, StockID: "sz002594"}.Validate())
	assert.Error(t, PricePayload{Type: PriceClose, Value: -1, StockID: "sz002594"}.Validate())
	assert.Error(t, PricePayload{Type: PriceClose, Value: 10}.Validate())

	p := ok.PricePoint("20250918")
	assert.Equal(t, PricePoint{StockID: "sz002594", Date: "20250918", Kind: PriceOpenWindowAvg, Value: 110.9}, p)
}

func TestIsHeartbeat(t *testing.T) {
	assert.True(t, IsHeartbeat("<wait> 08:44:59"))
	assert.False(t, IsHeartbeat("BYD reports record deliveries"))
	assert.False(t, IsHeartbeat(""))
}

func TestGenerationSummary_JSON(t *testing.T) {
	data, err := json.Marshal(GenerationSummary{StockID: "sh600000", Generated: 1})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "sh600000", raw["stock_id"])
	assert.Equal(t, 1.0, raw["generated_count"])
	assert.Equal(t, 1.0, raw["generated"])
	assert.Equal(t, []interface{}{}, raw["items"])

	tests := []struct {
		name string
		body string
		want int
	}{
		{"count key", `{"stock_id":"A","generated_count":3,"items":[]}`, 3},
		{"legacy key", `{"stock_id":"A","generated":2,"items":[]}`, 2},
		{"count wins", `{"stock_id":"A","generated_count":4,"generated":1}`, 4},
		{"neither", `{"stock_id":"A","items":[]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s GenerationSummary
			require.NoError(t, json.Unmarshal([]byte(tt.body), &s))
			assert.Equal(t, "A", s.StockID)
			if s.Generated != tt.want {
				t.Errorf("Generated = %d, want %d", s.Generated, tt.want)
			}
		})
	}
}
