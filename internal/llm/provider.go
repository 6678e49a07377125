// Package llm wraps the external text-reasoning capability behind a small
// provider interface. Claim detection, verdict reasoning, and cluster
// labeling all go through Complete; transport and authentication are the
// provider's concern.
package llm

import "context"

// Provider is a text-reasoning capability.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Complete runs a single prompt/response exchange.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is the input to a reasoning call.
type CompletionRequest struct {
	// System sets the system role content.
	System string

	// Prompt is the user message.
	Prompt string

	// JSONMode requests a JSON-object response where the provider supports
	// it. Callers are still expected to validate the parsed structure.
	JSONMode bool

	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int

	// Temperature overrides the configured temperature when >= 0.
	Temperature float64
}

// CompletionResponse is the provider's reply.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "ollama".
	Provider string

	// Model name (provider-specific).
	Model string

	// APIKey for hosted providers.
	APIKey string

	// BaseURL for custom endpoints (e.g. Ollama, proxies).
	BaseURL string

	// Timeout for API requests, in seconds.
	Timeout int

	// Temperature for generation.
	Temperature float64

	// MaxTokens for response generation.
	MaxTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "",
		Timeout:     30,
		Temperature: 0.2,
		MaxTokens:   2000,
	}
}
