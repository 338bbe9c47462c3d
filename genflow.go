// Package genflow provides a top-level convenience entry point for running
// workflow graphs with minimal boilerplate.
//
// Usage:
//
//	import "github.com/genflow-ai/genflow"
//
//	engine, err := genflow.New(genflow.WithOpenAI(os.Getenv("OPENAI_API_KEY")))
//	result, err := engine.Run(ctx, graph, "what does the contract say about renewal?")
//
// Collaborators default to safe no-op implementations: an empty in-memory
// document store and disabled web search. Production deployments should use
// cmd/genflow, which wires real backends from configuration.
package genflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/generation"
	"github.com/genflow-ai/genflow/retrieval"
	"github.com/genflow-ai/genflow/websearch"
	"github.com/genflow-ai/genflow/workflow"
)

// Version is the library version; cmd/genflow binaries report their own
// build-time injected version instead.
const Version = "0.1.0"

// Option configures the engine created by [New].
type Option func(*builder)

type builder struct {
	retriever    retrieval.Retriever
	searcher     websearch.Searcher
	generator    generation.Generator
	openAIAPIKey string
	logger       *zap.Logger
	concurrent   bool
}

// WithRetriever sets the document retrieval backend.
func WithRetriever(r retrieval.Retriever) Option {
	return func(b *builder) { b.retriever = r }
}

// WithSearcher sets the web search backend.
func WithSearcher(s websearch.Searcher) Option {
	return func(b *builder) { b.searcher = s }
}

// WithGenerator sets a pre-built generation client.
func WithGenerator(g generation.Generator) Option {
	return func(b *builder) { b.generator = g }
}

// WithOpenAI creates a generation client against the OpenAI API.
func WithOpenAI(apiKey string) Option {
	return func(b *builder) { b.openAIAPIKey = apiKey }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithConcurrency runs independent graph branches in parallel.
func WithConcurrency() Option {
	return func(b *builder) { b.concurrent = true }
}

// New creates a ready-to-run workflow engine. A generator must be provided
// via [WithOpenAI] or [WithGenerator].
func New(opts ...Option) (*workflow.Orchestrator, error) {
	b := &builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	if b.generator == nil && b.openAIAPIKey != "" {
		b.generator = generation.NewOpenAIClient(generation.OpenAIConfig{APIKey: b.openAIAPIKey}, b.logger)
	}
	if b.generator == nil {
		return nil, fmt.Errorf("genflow: a generator is required, use WithOpenAI or WithGenerator")
	}
	if b.retriever == nil {
		b.retriever = retrieval.NewMemoryStore(b.logger)
	}
	if b.searcher == nil {
		b.searcher = websearch.Disabled{}
	}

	registry := workflow.NewRegistry(b.retriever, b.searcher, b.generator, b.logger)

	engineOpts := []workflow.Option{workflow.WithLogger(b.logger)}
	if b.concurrent {
		engineOpts = append(engineOpts, workflow.WithConcurrency())
	}
	return workflow.NewOrchestrator(registry, engineOpts...), nil
}
