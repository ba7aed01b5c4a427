package orchestrator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/signaldesk/internal/contracts"
	"github.com/wonny/signaldesk/internal/llm"
)

// rawConclusion accepts the current keys and the legacy ones of earlier prompt versions
type rawConclusion struct {
	Prediction string          `json:"prediction"`
	Confidence json.RawMessage `json:"confidence"`
	Rationale  string          `json:"rationale"`

	LegacyPrediction string          `json:"趋势"`
	LegacyConfidence json.RawMessage `json:"置信度"`
	LegacyRationale  string          `json:"理由"`
}

// ParseConclusion decodes the generator's final answer into a draft.
// Every failure wraps ErrMalformedOutput.
func ParseConclusion(text string) (contracts.ConclusionDraft, error) {
	var raw rawConclusion
	if err := json.Unmarshal([]byte(llm.StripCodeFence(text)), &raw); err != nil {
		return contracts.ConclusionDraft{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	label := firstNonEmpty(raw.Prediction, raw.LegacyPrediction)
	direction, ok := contracts.ParseDirection(label)
	if !ok {
		return contracts.ConclusionDraft{}, fmt.Errorf("%w: unknown prediction %q", ErrMalformedOutput, label)
	}

	confRaw := raw.Confidence
	if len(confRaw) == 0 {
		confRaw = raw.LegacyConfidence
	}
	confidence, err := parseConfidence(confRaw)
	if err != nil {
		return contracts.ConclusionDraft{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return contracts.ConclusionDraft{
		Prediction: direction,
		Confidence: confidence,
		Rationale:  strings.TrimSpace(firstNonEmpty(raw.Rationale, raw.LegacyRationale)),
	}, nil
}

// parseConfidence accepts 0.8, "0.8", "80%" and 80
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing confidence")
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("confidence is neither number nor string: %s", raw)
		}
		s = strings.TrimSpace(s)
		percent := strings.HasSuffix(s, "%")
		v, err = strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid confidence %q", s)
		}
		if percent {
			v /= 100
		}
	}

	if v > 1 && v <= 100 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence %v out of range", v)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
