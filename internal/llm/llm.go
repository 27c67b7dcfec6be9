// Package llm talks to the generative model providers that voice the narrator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("no content returned from model")

// Request is a single-shot generation: one system instruction and one user message.
type Request struct {
	System      string
	Message     string
	Temperature float32
}

// Client generates raw text for a request. Implementations must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Settings select and configure a provider.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
}

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-0"
)

// New builds the client named by s.Provider. The returned close func releases provider resources.
func New(ctx context.Context, s Settings) (Client, func() error, error) {
	if s.APIKey == "" {
		return nil, nil, fmt.Errorf("%s API key not configured", s.Provider)
	}
	noop := func() error { return nil }

	switch strings.ToLower(s.Provider) {
	case "gemini", "":
		c, err := NewGeminiClient(ctx, s.APIKey, orDefault(s.Model, DefaultGeminiModel))
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "openai":
		return NewOpenAIClient(s.APIKey, orDefault(s.Model, DefaultOpenAIModel)), noop, nil
	case "anthropic":
		return NewAnthropicClient(s.APIKey, orDefault(s.Model, DefaultAnthropicModel)), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
