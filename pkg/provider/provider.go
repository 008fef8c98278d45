// Package provider implements the model backends for the assistant:
// Anthropic and OpenRouter, both with synchronous and streaming calls.
package provider

import (
	"fmt"
	"net/http"

	"github.com/inkfold/inkfold/pkg/assist"
)

// Name selects a backend.
type Name string

const (
	Anthropic  Name = "anthropic"
	OpenRouter Name = "openrouter"
)

// Config holds provider settings.
type Config struct {
	Provider    Name    `json:"provider" yaml:"provider"`
	APIKey      string  `json:"apiKey" yaml:"api_key"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"maxTokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// DefaultConfig returns the provider defaults minus the API key.
func DefaultConfig() Config {
	return Config{
		Provider:    Anthropic,
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// IsConfigured reports whether the config can authenticate.
func (c Config) IsConfigured() bool {
	return c.APIKey != ""
}

// normalize fills zero fields from the defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = def.Temperature
	}
	return c
}

func newHTTPClient() *http.Client {
	// No overall timeout: streaming responses stay open for the whole
	// completion. Cancellation goes through the request context.
	return &http.Client{}
}

// New builds the completion provider the config names.
func New(cfg Config) (assist.CompletionProvider, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("provider: missing API key")
	}
	cfg = cfg.normalize()
	switch cfg.Provider {
	case Anthropic:
		return NewAnthropicClient(cfg), nil
	case OpenRouter:
		return NewOpenRouterClient(cfg), nil
	default:
		return nil, fmt.Errorf("provider: unsupported provider %q", cfg.Provider)
	}
}
