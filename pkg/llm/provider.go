package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	Persona     string // Prepended as a system message by Generate
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithPersona sets the instruction describing who the model should act as.
func WithPersona(persona string) Option {
	return func(o *Options) {
		o.Persona = persona
	}
}

// ResolveOptions applies opts over defaults.
func ResolveOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// PromptMessages builds the history for a single-turn request.
func PromptMessages(persona, prompt string) []Message {
	if persona == "" {
		return []Message{{Role: RoleUser, Content: prompt}}
	}
	return []Message{
		{Role: RoleSystem, Content: persona},
		{Role: RoleUser, Content: prompt},
	}
}

// LLMProvider defines the contract for any LLM backend. Providers carry no
// retry policy; callers decide what a failure means.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt (plus optional persona) to the model
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
