// Package retrieval defines the knowledge retrieval collaborator contract
// and its backing implementations: a Qdrant REST client for production, an
// in-memory keyword store for development and tests, and a Redis caching
// decorator.
package retrieval

import "context"

// Query describes one retrieval request.
type Query struct {
	// Text is the user query to match against stored passages.
	Text string
	// DocumentID restricts the search to a single document when non-empty.
	DocumentID string
	// MaxResults caps the number of returned passages.
	MaxResults int
	// SimilarityThreshold drops passages scoring below it.
	SimilarityThreshold float64
}

// Passage is one retrieved text fragment with its provenance.
type Passage struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Retriever is the narrow interface the workflow engine calls. Search is
// read-only and idempotent, so the engine may retry it on transient failures.
type Retriever interface {
	Search(ctx context.Context, q Query) ([]Passage, error)
}

// Embedder converts text into a vector for similarity search. Vector-backed
// retrievers need one; keyword-based retrievers do not.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
