// Package toolrpc carries named tool calls over a websocket: one call per
// connection, with progress notifications and sampling round-trips before the
// terminal result or error.
package toolrpc

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/signaldesk/internal/contracts"
)

type frameType string

const (
	frameCall         frameType = "call"          // client → server
	frameProgress     frameType = "progress"      // server → client
	frameSample       frameType = "sample"        // server → client, expects sample_result
	frameSampleResult frameType = "sample_result" // client → server
	frameResult       frameType = "result"        // server → client, terminal
	frameError        frameType = "error"         // server → client, terminal
)

// frame is the single wire message shape; unused fields are omitted
type frame struct {
	Type frameType `json:"type"`
	ID   string    `json:"id,omitempty"` // sample correlation id

	// call
	Name string          `json:"name,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// progress
	Progress float64  `json:"progress,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Message  string   `json:"message,omitempty"`

	// sample
	Messages []contracts.SamplingMessage `json:"messages,omitempty"`
	Params   *contracts.SamplingParams   `json:"params,omitempty"`

	// sample_result
	Text string `json:"text,omitempty"`

	// result / error (also used by a failed sample_result)
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ToolError is a terminal error raised by the remote tool itself.
// Transport failures are returned as ordinary errors.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}
