// Package generation defines the language-model generation collaborator
// contract and an OpenAI-compatible HTTP client.
package generation

import (
	"context"
	"time"
)

// Request describes one completion request. Calls are billable and not
// idempotent: the engine never retries them automatically.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// APIKey overrides the client-level key when the workflow node carries
	// its own credential.
	APIKey string
}

// Response is the completion result.
type Response struct {
	Text       string
	TokensUsed int
	Latency    time.Duration
}

// Generator is the narrow interface the workflow engine calls.
type Generator interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
