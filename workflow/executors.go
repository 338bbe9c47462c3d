package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/generation"
	"github.com/genflow-ai/genflow/retrieval"
	"github.com/genflow-ai/genflow/types"
	"github.com/genflow-ai/genflow/websearch"
)

// Execution-time defaults. Validation warns when a node relies on them.
const (
	DefaultModel               = "gpt-3.5-turbo"
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 1000
	DefaultMaxResults          = 5
	DefaultSimilarityThreshold = 0.7
)

// Collaborator deadlines and the retry budget for idempotent lookups.
// Generation calls are never retried: they are billable and non-idempotent.
const (
	RetrievalTimeout  = 10 * time.Second
	SearchTimeout     = 10 * time.Second
	GenerationTimeout = 30 * time.Second

	collaboratorRetries = 2
	retryInitialDelay   = 200 * time.Millisecond
	retryMaxDelay       = 2 * time.Second
)

// Inputs maps port names to the values gathered from a node's predecessors.
type Inputs map[string]any

// String returns the input on the given port coerced to a string.
func (in Inputs) String(port string) string {
	if v, ok := in[port]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// StringSlice returns the input on the given port coerced to a string slice.
func (in Inputs) StringSlice(port string) []string {
	v, ok := in[port]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Executor runs one node type. Implementations declare their port contract so
// the orchestrator can wire inputs and report configuration defects before
// any collaborator is called.
type Executor interface {
	Type() NodeType
	RequiredInputs() []string
	OptionalInputs() []string
	Outputs() []string
	Execute(ctx context.Context, node *Node, in Inputs) (map[string]any, error)
}

// Registry maps node types to their executors.
type Registry map[NodeType]Executor

// NewRegistry builds the standard executor table. Nil collaborators are
// replaced with inert defaults so a graph without the corresponding node type
// still runs.
func NewRegistry(retriever retrieval.Retriever, searcher websearch.Searcher, generator generation.Generator, logger *zap.Logger) Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if searcher == nil {
		searcher = websearch.Disabled{}
	}
	return Registry{
		NodeUserQuery:     &UserQueryExecutor{},
		NodeKnowledgeBase: &KnowledgeBaseExecutor{Retriever: retriever, logger: logger.With(zap.String("component", "executor.knowledge_base"))},
		NodeLLMEngine:     &LLMEngineExecutor{Generator: generator, Searcher: searcher, logger: logger.With(zap.String("component", "executor.llm_engine"))},
		NodeOutput:        &OutputExecutor{},
	}
}

// UserQueryExecutor seeds the context bus with the request query. The node's
// design-time placeholder never reaches execution output.
type UserQueryExecutor struct{}

func (e *UserQueryExecutor) Type() NodeType           { return NodeUserQuery }
func (e *UserQueryExecutor) RequiredInputs() []string { return nil }
func (e *UserQueryExecutor) OptionalInputs() []string { return nil }
func (e *UserQueryExecutor) Outputs() []string        { return []string{PortQuery} }

func (e *UserQueryExecutor) Execute(ctx context.Context, node *Node, in Inputs) (map[string]any, error) {
	query := in.String(PortQuery)
	if query == "" {
		return nil, types.NewError(types.ErrConfig, "no query available for execution").WithNodeID(node.ID)
	}
	return map[string]any{PortQuery: query}, nil
}

// KnowledgeBaseExecutor retrieves supporting passages. Failures degrade to an
// empty context unless the node is marked strict; lookups are idempotent and
// retried with exponential backoff.
type KnowledgeBaseExecutor struct {
	Retriever retrieval.Retriever
	// Timeout bounds a single retrieval attempt. Zero means RetrievalTimeout.
	Timeout time.Duration
	logger  *zap.Logger
}

func (e *KnowledgeBaseExecutor) log() *zap.Logger {
	if e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

func (e *KnowledgeBaseExecutor) Type() NodeType           { return NodeKnowledgeBase }
func (e *KnowledgeBaseExecutor) RequiredInputs() []string { return []string{PortQuery} }
func (e *KnowledgeBaseExecutor) OptionalInputs() []string { return nil }
func (e *KnowledgeBaseExecutor) Outputs() []string        { return []string{PortContext, PortSources} }

func (e *KnowledgeBaseExecutor) Execute(ctx context.Context, node *Node, in Inputs) (map[string]any, error) {
	degraded := map[string]any{PortContext: "", PortSources: []string{}}

	if e.Retriever == nil {
		if node.Config.Strict {
			return nil, types.NewError(types.ErrConfig, "no retrieval backend configured").WithNodeID(node.ID)
		}
		e.log().Warn("no retrieval backend configured, continuing with empty context", zap.String("node_id", node.ID))
		return degraded, nil
	}

	q := retrieval.Query{
		Text:                in.String(PortQuery),
		DocumentID:          node.Config.DocumentID,
		MaxResults:          node.Config.MaxResults,
		SimilarityThreshold: node.Config.SimilarityThreshold,
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.SimilarityThreshold <= 0 || q.SimilarityThreshold > 1 {
		q.SimilarityThreshold = DefaultSimilarityThreshold
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = RetrievalTimeout
	}
	passages, err := retryCollaborator(ctx, e.log(), func(callCtx context.Context) ([]retrieval.Passage, error) {
		callCtx, cancel := context.WithTimeout(callCtx, timeout)
		defer cancel()
		return e.Retriever.Search(callCtx, q)
	})
	if err != nil {
		if node.Config.Strict {
			return nil, asCollaboratorError(err, node.ID, "knowledge base retrieval failed")
		}
		e.log().Warn("retrieval failed, continuing with empty context",
			zap.String("node_id", node.ID),
			zap.Error(err))
		return degraded, nil
	}

	var b strings.Builder
	seen := make(map[string]struct{})
	sources := make([]string, 0, len(passages))
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Content)
		if p.SourceID != "" {
			if _, ok := seen[p.SourceID]; !ok {
				seen[p.SourceID] = struct{}{}
				sources = append(sources, p.SourceID)
			}
		}
	}

	e.log().Debug("retrieval complete",
		zap.String("node_id", node.ID),
		zap.Int("passages", len(passages)),
		zap.Int("sources", len(sources)))

	return map[string]any{PortContext: b.String(), PortSources: sources}, nil
}

// LLMEngineExecutor generates the response. Generation failures are always
// fatal and never retried; an optional web search augments the prompt and
// degrades on failure like retrieval does.
type LLMEngineExecutor struct {
	Generator generation.Generator
	Searcher  websearch.Searcher
	// Timeout bounds the generation call. Zero means GenerationTimeout.
	Timeout time.Duration
	logger  *zap.Logger
}

func (e *LLMEngineExecutor) log() *zap.Logger {
	if e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

func (e *LLMEngineExecutor) Type() NodeType           { return NodeLLMEngine }
func (e *LLMEngineExecutor) RequiredInputs() []string { return []string{PortQuery} }
func (e *LLMEngineExecutor) OptionalInputs() []string { return []string{PortContext, PortSources} }
func (e *LLMEngineExecutor) Outputs() []string        { return []string{PortResponse} }

func (e *LLMEngineExecutor) Execute(ctx context.Context, node *Node, in Inputs) (map[string]any, error) {
	if e.Generator == nil {
		return nil, types.NewError(types.ErrConfig, "no generation backend configured").WithNodeID(node.ID)
	}

	query := in.String(PortQuery)
	knowledge := in.String(PortContext)

	webContext := ""
	if node.Config.EnableWebSearch && e.Searcher != nil {
		results, err := retryCollaborator(ctx, e.log(), func(callCtx context.Context) ([]websearch.Result, error) {
			callCtx, cancel := context.WithTimeout(callCtx, SearchTimeout)
			defer cancel()
			return e.Searcher.Search(callCtx, query, DefaultMaxResults)
		})
		if err != nil {
			e.log().Warn("web search failed, continuing without web context",
				zap.String("node_id", node.ID),
				zap.Error(err))
		} else {
			webContext = websearch.FormatContext(results)
		}
	}

	system, user := generation.BuildPrompt(generation.PromptInput{
		Query:            query,
		KnowledgeContext: knowledge,
		WebContext:       webContext,
		CustomSystem:     node.Config.SystemPrompt,
		Model:            modelOrDefault(node.Config.Model),
	})

	req := generation.Request{
		Model:       modelOrDefault(node.Config.Model),
		System:      system,
		Prompt:      user,
		Temperature: node.Config.Temperature,
		MaxTokens:   node.Config.MaxTokens,
		APIKey:      node.Config.APIKey,
	}
	if req.Temperature <= 0 {
		req.Temperature = DefaultTemperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = GenerationTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.Generator.Complete(genCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "execution cancelled").WithNodeID(node.ID).WithCause(ctx.Err())
		}
		if genCtx.Err() == context.DeadlineExceeded {
			return nil, types.NewError(types.ErrCollaboratorTimeout,
				fmt.Sprintf("generation exceeded %s", timeout)).
				WithNodeID(node.ID).WithCause(err)
		}
		return nil, asCollaboratorError(err, node.ID, "generation failed")
	}

	e.log().Debug("generation complete",
		zap.String("node_id", node.ID),
		zap.String("model", req.Model),
		zap.Int("tokens_used", resp.TokensUsed),
		zap.Duration("latency", resp.Latency))

	return map[string]any{PortResponse: resp.Text}, nil
}

// OutputExecutor packages the final response. Source visibility is a
// per-node toggle; the citation list itself is accumulated on the bus.
type OutputExecutor struct{}

func (e *OutputExecutor) Type() NodeType           { return NodeOutput }
func (e *OutputExecutor) RequiredInputs() []string { return []string{PortResponse} }
func (e *OutputExecutor) OptionalInputs() []string { return []string{PortSources} }
func (e *OutputExecutor) Outputs() []string        { return []string{PortResponse} }

func (e *OutputExecutor) Execute(ctx context.Context, node *Node, in Inputs) (map[string]any, error) {
	return map[string]any{PortResponse: in.String(PortResponse)}, nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}

// asCollaboratorError normalizes a collaborator failure into the engine's
// error taxonomy with node attribution, preserving an existing code when the
// collaborator already classified itself.
func asCollaboratorError(err error, nodeID, msg string) error {
	var te *types.Error
	if errors.As(err, &te) {
		if te.NodeID == "" {
			return te.WithNodeID(nodeID)
		}
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrCollaboratorTimeout, msg).WithNodeID(nodeID).WithCause(err)
	}
	return types.NewError(types.ErrCollaborator, msg).WithNodeID(nodeID).WithCause(err)
}

// retryCollaborator retries an idempotent collaborator call with exponential
// backoff. A *types.Error marked non-retryable stops immediately, as does
// cancellation of the parent context.
func retryCollaborator[T any](ctx context.Context, logger *zap.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= collaboratorRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			logger.Debug("retrying collaborator call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return zero, types.NewError(types.ErrCancelled, "execution cancelled").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, types.NewError(types.ErrCancelled, "execution cancelled").WithCause(ctx.Err())
		}
		var te *types.Error
		if errors.As(err, &te) && !te.Retryable {
			return zero, err
		}
	}
	return zero, lastErr
}

func backoffDelay(attempt int) time.Duration {
	d := float64(retryInitialDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(retryMaxDelay) {
		d = float64(retryMaxDelay)
	}
	return time.Duration(d)
}
