package llmgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	maxResponseBytes     = 1 << 20
)

// OpenRouter calls an OpenAI-compatible chat completions endpoint with a
// bearer token.
type OpenRouter struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewOpenRouter(client *http.Client, baseURL, apiKey string) *OpenRouter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	return &OpenRouter{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (o *OpenRouter) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (o *OpenRouter) Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Completion{}, &TransientError{Err: err}
		}
		return Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Completion{}, &TransientError{Err: fmt.Errorf("failed to read completion: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		statusErr := fmt.Errorf("completion returned %d: %s", resp.StatusCode, msg)
		if transientStatus(resp.StatusCode) {
			return Completion{}, &TransientError{StatusCode: resp.StatusCode, Err: statusErr}
		}
		return Completion{}, statusErr
	}

	if !gjson.ValidBytes(data) {
		return Completion{}, fmt.Errorf("completion response is not valid JSON")
	}
	parsed := gjson.ParseBytes(data)
	content := parsed.Get("choices.0.message.content")
	if !content.Exists() {
		return Completion{}, fmt.Errorf("completion response has no choices")
	}

	return Completion{
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     int(parsed.Get("usage.prompt_tokens").Int()),
			CompletionTokens: int(parsed.Get("usage.completion_tokens").Int()),
			TotalTokens:      int(parsed.Get("usage.total_tokens").Int()),
		},
	}, nil
}
