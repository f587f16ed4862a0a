package oracle

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/valpere/redraft/internal/postprocess"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIOracle completes prompts with the official openai-go SDK. Any
// OpenAI-compatible endpoint (DeepSeek, vLLM, ...) works through BaseURL.
type OpenAIOracle struct {
	model  string
	client openai.Client
}

func NewOpenAI(s Settings) (*OpenAIOracle, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	model := s.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}
	// Retries are layered explicitly with Retrying.
	opts = append(opts, option.WithMaxRetries(0))

	return &OpenAIOracle{model: model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAIOracle) Name() string {
	return "openai:" + o.model
}

func (o *OpenAIOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(p.User))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return postprocess.Clean(resp.Choices[0].Message.Content), nil
}
