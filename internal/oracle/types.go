// Package oracle defines the text-in/text-out boundary used by the
// refinement loop and its implementations for hosted and local LLMs.
package oracle

import (
	"context"
	"time"
)

// Settings configures a concrete oracle. Field tags mirror the keys
// accepted in the config file and REDRAFT_* environment variables.
type Settings struct {
	Provider string        `mapstructure:"provider" json:"provider"`
	Model    string        `mapstructure:"model" json:"model"`
	APIKey   string        `mapstructure:"api_key" json:"api_key"`
	BaseURL  string        `mapstructure:"base_url" json:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Prompt is a single request to an oracle. Context carries optional
// structured values (task, round, draft) that wrappers may inspect.
type Prompt struct {
	System  string            `json:"system"`
	User    string            `json:"user"`
	Context map[string]string `json:"context,omitempty"`
}

// TextOracle takes a prompt and returns text or fails.
type TextOracle interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Func adapts a plain function to TextOracle.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}
