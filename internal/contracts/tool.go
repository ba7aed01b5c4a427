package contracts

import (
	"context"
	"encoding/json"
	"strings"
)

// HeartbeatPrefix marks progress messages that carry no payload
const HeartbeatPrefix = "<wait>"

// IsHeartbeat reports whether a progress message is a keep-alive marker
func IsHeartbeat(message string) bool {
	return strings.HasPrefix(message, HeartbeatPrefix)
}

// Tool names exposed by the remote services
const (
	ToolMarketOpen = "opening" // info-collector: {} -> {"result": bool}
	ToolSearch     = "search"  // info-collector: {"src", "stock"}
	ToolPredict    = "predict" // signal-predictor: {"news"}
	ToolTrade      = "trade"   // trader: {"stock"}
)

// SamplingMessage is one role-tagged text sent back to the caller for generation
type SamplingMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SamplingParams are the generation parameters of a sampling request
type SamplingParams struct {
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"` // nil = generator default; 0 is a real value
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// ProgressHandler consumes progress notifications of a running tool call.
// total is nil when the tool did not report one.
type ProgressHandler interface {
	OnProgress(ctx context.Context, progress float64, total *float64, message string) error
}

// SamplingHandler answers a tool's request to generate text on its behalf
type SamplingHandler interface {
	OnSample(ctx context.Context, messages []SamplingMessage, params SamplingParams) (string, error)
}

// ProgressFunc adapts a function to ProgressHandler
type ProgressFunc func(ctx context.Context, progress float64, total *float64, message string) error

// OnProgress calls f
func (f ProgressFunc) OnProgress(ctx context.Context, progress float64, total *float64, message string) error {
	return f(ctx, progress, total, message)
}

// SamplingFunc adapts a function to SamplingHandler
type SamplingFunc func(ctx context.Context, messages []SamplingMessage, params SamplingParams) (string, error)

// OnSample calls f
func (f SamplingFunc) OnSample(ctx context.Context, messages []SamplingMessage, params SamplingParams) (string, error) {
	return f(ctx, messages, params)
}

// Handlers are the optional callbacks attached to a single tool call
type Handlers struct {
	Progress ProgressHandler
	Sampling SamplingHandler
}

// ToolInvoker invokes a named operation on a remote tool service.
// ⭐ SSOT: 원격 tool 호출 인터페이스는 여기서만 정의
type ToolInvoker interface {
	Call(ctx context.Context, name string, args map[string]interface{}, h Handlers) (json.RawMessage, error)
}
