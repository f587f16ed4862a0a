package postprocess

import "testing"

func TestRemoveThinkingBlocks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no blocks", input: "A crisp tagline.", expected: "A crisp tagline."},
		{name: "think block", input: "Draft<think>weighing options</think> text", expected: "Draft text"},
		{name: "reasoning block", input: "<reasoning>step 1</reasoning>Result", expected: "Result"},
		{name: "reflection block", input: "Begin<reflection>check</reflection>End", expected: "BeginEnd"},
		{name: "multiple blocks", input: "<thinking>a</thinking>middle<thinking>b</thinking>", expected: "middle"},
		{name: "truncated block", input: "<thinking>never closed", expected: ""},
		{name: "truncated after text", input: "Kept<think>cut off", expected: "Kept"},
		{name: "case insensitive", input: "<THINK>x</THINK>ok", expected: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removeThinkingBlocks(tt.input); got != tt.expected {
				t.Errorf("removeThinkingBlocks(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRemovePreamble(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no preamble", input: "Buy now.", expected: "Buy now."},
		{name: "here is the revised draft", input: "Here is the revised draft: Done", expected: "Done"},
		{name: "here's my critique", input: "Here's my critique:\nToo generic", expected: "Too generic"},
		{name: "the revised draft", input: "The revised draft: Hello", expected: "Hello"},
		{name: "improved version", input: "Improved version: Better", expected: "Better"},
		{name: "sure preamble", input: "Sure, here's the improved version: Text", expected: "Text"},
		{name: "certainly preamble", input: "Certainly! Here is the final draft: Text", expected: "Text"},
		{name: "not at start", input: "Before Here's the draft: After", expected: "Before Here's the draft: After"},
		{name: "no colon", input: "Here's the draft text", expected: "Here's the draft text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removePreamble(tt.input); got != tt.expected {
				t.Errorf("removePreamble(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRemoveFenceWrapping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no fence", input: "plain", expected: "plain"},
		{name: "markdown fence", input: "```markdown\n# Title\n\nBody\n```", expected: "# Title\n\nBody"},
		{name: "bare fence", input: "```\nBody\n```", expected: "Body"},
		{name: "fence in the middle is kept", input: "Intro\n```go\nx := 1\n```\nOutro", expected: "Intro\n```go\nx := 1\n```\nOutro"},
		{name: "two fences are kept", input: "```\na\n```\n```\nb\n```", expected: "```\na\n```\n```\nb\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removeFenceWrapping(tt.input); got != tt.expected {
				t.Errorf("removeFenceWrapping(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRemoveQuoteWrapping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "single char", input: "a", expected: "a"},
		{name: "double quotes", input: "\"Buy now.\"", expected: "Buy now."},
		{name: "single quotes", input: "'Buy now.'", expected: "Buy now."},
		{name: "guillemets", input: "«Buy now.»", expected: "Buy now."},
		{name: "curly double", input: "“Buy now.”", expected: "Buy now."},
		{name: "curly single", input: "‘Buy now.’", expected: "Buy now."},
		{name: "unmatched", input: "\"Buy now.'", expected: "\"Buy now.'"},
		{name: "inner quotes kept", input: "\"He said \"hi\"\"", expected: "He said \"hi\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removeQuoteWrapping(tt.input); got != tt.expected {
				t.Errorf("removeQuoteWrapping(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "clean text", input: "Buy now.", expected: "Buy now."},
		{name: "full pipeline", input: "<think>hmm</think>Here is the revised draft:\n\"Buy now.\"", expected: "Buy now."},
		{name: "fenced answer", input: "Here is the final draft:\n```markdown\n# Launch\n```", expected: "# Launch"},
		{name: "surrounding whitespace", input: "  \n Buy now. \n", expected: "Buy now."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
