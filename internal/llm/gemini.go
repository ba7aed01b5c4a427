package llm

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"google.golang.org/genai"

	"github.com/wonny/signaldesk/pkg/httputil"
)

// ErrEmptyCompletion is returned when the model answered without text
var ErrEmptyCompletion = errors.New("empty completion")

// DefaultAPIVersion is used when the base URL carries no version segment
const DefaultAPIVersion = "v1beta"

// Gemini calls generateContent through the Gen AI SDK.
// ⭐ SSOT: 외부 LLM API 호출은 이 클라이언트에서만
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a backend. httpClient must have retries disabled:
// every attempt has to pass through the rate window.
// baseURL may end in an API version segment such as /v1beta.
func NewGemini(ctx context.Context, httpClient *httputil.Client, baseURL, apiKey string) (*Gemini, error) {
	root, version := splitAPIVersion(baseURL)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient.HTTPClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    root,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// splitAPIVersion turns "https://host/v1beta" into ("https://host/", "v1beta")
func splitAPIVersion(baseURL string) (string, string) {
	trimmed := strings.TrimRight(baseURL, "/")
	last := path.Base(trimmed)
	if len(last) > 1 && last[0] == 'v' && last[1] >= '0' && last[1] <= '9' {
		return strings.TrimSuffix(trimmed, last), last
	}
	return trimmed + "/", DefaultAPIVersion
}

// generationConfig returns nil when opts asks for nothing beyond the model defaults
func generationConfig(opts CompleteOptions) *genai.GenerateContentConfig {
	if opts.Temperature == nil && opts.MaxTokens <= 0 && !opts.Thinking {
		return nil
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Thinking {
		// -1 = dynamic budget
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)}
	}
	return cfg
}

// Complete sends one prompt to model and returns the concatenated answer text
func (g *Gemini) Complete(ctx context.Context, model, prompt string, opts CompleteOptions) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), generationConfig(opts))
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ErrEmptyCompletion
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("%w (finish reason %s)", ErrEmptyCompletion, candidate.FinishReason)
	}
	return sb.String(), nil
}
