package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/redraft/internal/postprocess"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "meta-llama/llama-3.1-8b-instruct:free"
)

// ErrMissingAPIKey is returned by hosted oracles configured without a key.
var ErrMissingAPIKey = errors.New("api key required")

// OpenRouterOracle completes prompts through OpenRouter's chat completions API.
type OpenRouterOracle struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewOpenRouter(apiKey, baseURL, model string) *OpenRouterOracle {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return &OpenRouterOracle{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenRouterOracle) Name() string {
	return "openrouter:" + o.model
}

func (o *OpenRouterOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("openrouter: %w", ErrMissingAPIKey)
	}

	var msgs []chatMessage
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.User})

	jsonData, err := json.Marshal(chatRequest{Model: o.model, Messages: msgs, MaxTokens: 4096})
	if err != nil {
		return "", fmt.Errorf("failed to marshal openrouter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat/completions", o.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://redraft.local")
	req.Header.Set("X-Title", "redraft")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("openrouter returned status %d: %v", resp.StatusCode, errResp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode openrouter response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: empty choices")
	}

	return postprocess.Clean(out.Choices[0].Message.Content), nil
}
