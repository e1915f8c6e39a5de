package provider

import (
	"context"
	"time"
)

// ProviderClient is the interface every generative-text provider implements.
type ProviderClient interface {
	// Generate sends a prompt and returns a complete response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Stream sends a prompt and returns a channel of response chunks.
	// The channel is closed when streaming completes. The last chunk has
	// Done set, and carries Error when the stream failed.
	Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error)

	// GetCapabilities returns what this provider supports
	GetCapabilities() *ProviderCapabilities

	// GetInfo returns metadata about the provider
	GetInfo() *ProviderInfo

	// IsAvailable reports whether the provider has what it needs to serve requests.
	IsAvailable() bool

	// Health performs a health check on the provider.
	// Returns nil if healthy, error describing the problem otherwise.
	Health(ctx context.Context) error

	// Close cleans up any resources used by the provider.
	Close() error
}

// ProviderCapabilities describes what features a provider supports
type ProviderCapabilities struct {
	// SupportsStreaming indicates token-level streaming. Providers without it
	// still implement Stream, but deliver the whole response as one chunk.
	SupportsStreaming bool

	// MaxContextTokens is the maximum context window size
	MaxContextTokens int
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	// Name is the provider identifier ("openai", "gemini")
	Name string

	// Model is the default model used when a request does not name one
	Model string

	// BaseURL is the endpoint the provider talks to
	BaseURL string

	// Type is the provider implementation type
	Type ProviderType

	// Description is a human-readable description of the provider
	Description string
}

// ProviderType represents the implementation type of a provider
type ProviderType string

const (
	// ProviderTypeAPI is an HTTP API client
	ProviderTypeAPI ProviderType = "api"
)

// StreamChunk represents a single chunk in a streaming response
type StreamChunk struct {
	// Content is the accumulated text so far
	Content string

	// Delta is the text added by this chunk
	Delta string

	// Done indicates if this is the final chunk
	Done bool

	// Error contains any error that occurred (in the final chunk)
	Error error

	// Timestamp is when this chunk was received
	Timestamp time.Time
}
