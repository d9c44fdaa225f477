// Package provider implements AI inference backends.
//
// This package contains:
//   - Provider interface: the capability set the registry manages
//   - OpenAIProvider: any OpenAI-compatible HTTP API
//   - OllamaProvider: a local Ollama server
package provider

import (
	"context"
	"time"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a model-inference request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the completed answer to a ChatRequest.
type ChatResponse struct {
	Content    string    `json:"content"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	TokensUsed int       `json:"tokens_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is one streamed fragment of a response.
type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	OwnedBy  string `json:"owned_by,omitempty"`
}

// Provider is the capability set every backend exposes. The registry
// treats providers polymorphically over this interface regardless of the
// underlying API.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama")
	Name() string

	// Call performs a single inference request
	Call(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream performs an inference request, delivering the response as a
	// sequence of chunks. The channel is closed after the final chunk.
	Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error)

	// HealthCheck probes the backend; nil means reachable
	HealthCheck(ctx context.Context) error

	// ListModels returns the names of models the backend serves
	ListModels(ctx context.Context) ([]string, error)

	// ModelInfo returns details for a named model
	ModelInfo(ctx context.Context, name string) (*ModelInfo, error)

	// Close releases resources
	Close() error
}
