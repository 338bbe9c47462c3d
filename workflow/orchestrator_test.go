package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genflow-ai/genflow/generation"
	"github.com/genflow-ai/genflow/retrieval"
	"github.com/genflow-ai/genflow/types"
)

// arithmeticGenerator answers every prompt with "4" after a tiny delay so
// execution time is measurable.
func arithmeticGenerator() stubGenerator {
	return stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		time.Sleep(time.Millisecond)
		return &generation.Response{Text: "4", TokensUsed: 5}, nil
	}}
}

func newTestOrchestrator(reg Registry, opts ...Option) *Orchestrator {
	return NewOrchestrator(reg, opts...)
}

func TestOrchestratorMinimalRun(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil, arithmeticGenerator(), nil)
	o := newTestOrchestrator(reg)

	res, err := o.Run(context.Background(), minimalGraph(), "what is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "4", res.Response)
	assert.Equal(t, []string{}, res.Sources)
	assert.Greater(t, res.ExecutionTimeMS, 0.0)
	assert.Equal(t, []string{"q1", "l1", "o1"}, res.ExecutionOrder)
	assert.Len(t, res.NodeTimingsMS, 3)
}

func TestOrchestratorKnowledgeBaseSources(t *testing.T) {
	t.Parallel()

	retriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return []retrieval.Passage{
			{Content: "policy text", SourceID: "doc-b"},
			{Content: "more policy", SourceID: "doc-a"},
		}, nil
	}}
	reg := NewRegistry(retriever, nil, arithmeticGenerator(), nil)
	o := newTestOrchestrator(reg)

	g := ragGraph()
	g.Nodes[3].Config.ShowSources = true
	res, err := o.Run(context.Background(), g, "refund policy?")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, res.Sources)
}

func TestOrchestratorHidesSourcesByDefault(t *testing.T) {
	t.Parallel()

	retriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return []retrieval.Passage{{Content: "x", SourceID: "doc-1"}}, nil
	}}
	reg := NewRegistry(retriever, nil, arithmeticGenerator(), nil)
	o := newTestOrchestrator(reg)

	res, err := o.Run(context.Background(), ragGraph(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Sources)
}

func TestOrchestratorInvalidGraph(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(NewRegistry(nil, nil, arithmeticGenerator(), nil))
	_, err := o.Run(context.Background(), &Graph{Nodes: []Node{{ID: "q1", Type: NodeUserQuery}}}, "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "Missing LLM Engine node")
}

func TestOrchestratorCyclicGraph(t *testing.T) {
	t.Parallel()

	g := minimalGraph()
	g.Connections = append(g.Connections, Edge{Source: "o1", Target: "l1"})

	o := newTestOrchestrator(NewRegistry(nil, nil, arithmeticGenerator(), nil))
	_, err := o.Run(context.Background(), g, "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrCycleDetected, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "l1")
	assert.Contains(t, err.Error(), "o1")
}

func TestOrchestratorKnowledgeBaseFailureDegrades(t *testing.T) {
	t.Parallel()

	retriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return nil, types.NewError(types.ErrCollaborator, "backend down").WithRetryable(false)
	}}

	var prompt string
	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		prompt = req.Prompt
		return &generation.Response{Text: "degraded answer"}, nil
	}}

	o := newTestOrchestrator(NewRegistry(retriever, nil, gen, nil))
	res, err := o.Run(context.Background(), ragGraph(), "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "degraded answer", res.Response)
	// No context reached the prompt, so the raw query is sent as-is.
	assert.Equal(t, "what is 2+2?", prompt)
}

func TestOrchestratorKnowledgeBaseRemovalIsAdditive(t *testing.T) {
	t.Parallel()

	emptyRetriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return nil, nil
	}}

	prompts := map[string]string{}
	gen := func(label string) stubGenerator {
		return stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
			prompts[label] = req.Prompt
			return &generation.Response{Text: "same"}, nil
		}}
	}

	withKB := newTestOrchestrator(NewRegistry(emptyRetriever, nil, gen("with"), nil))
	withoutKB := newTestOrchestrator(NewRegistry(nil, nil, gen("without"), nil))

	resWith, err := withKB.Run(context.Background(), ragGraph(), "2+2?")
	require.NoError(t, err)
	resWithout, err := withoutKB.Run(context.Background(), minimalGraph(), "2+2?")
	require.NoError(t, err)

	assert.Equal(t, resWithout.Response, resWith.Response)
	assert.Equal(t, prompts["without"], prompts["with"])
}

func TestOrchestratorGenerationFailureAbortsWithNodeID(t *testing.T) {
	t.Parallel()

	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		return nil, errors.New("model overloaded")
	}}
	o := newTestOrchestrator(NewRegistry(nil, nil, gen, nil))

	_, err := o.Run(context.Background(), minimalGraph(), "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrCollaborator, types.GetErrorCode(err))
	assert.Equal(t, "l1", types.GetNodeID(err))
}

func TestOrchestratorGenerationTimeout(t *testing.T) {
	t.Parallel()

	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	reg := NewRegistry(nil, nil, gen, nil)
	reg[NodeLLMEngine] = &LLMEngineExecutor{Generator: gen, Timeout: 15 * time.Millisecond}
	o := newTestOrchestrator(reg)

	_, err := o.Run(context.Background(), minimalGraph(), "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrCollaboratorTimeout, types.GetErrorCode(err))
	assert.Equal(t, "l1", types.GetNodeID(err))
}

func TestOrchestratorCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(NewRegistry(nil, nil, arithmeticGenerator(), nil))
	_, err := o.Run(ctx, minimalGraph(), "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))
}

func TestOrchestratorCancelledBetweenNodes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		// Cancel after generation completes; the output node must not run.
		cancel()
		return &generation.Response{Text: "done"}, nil
	}}

	o := newTestOrchestrator(NewRegistry(nil, nil, gen, nil))
	_, err := o.Run(ctx, minimalGraph(), "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))
}

func TestOrchestratorEmptyQuery(t *testing.T) {
	t.Parallel()

	var invoked bool
	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		invoked = true
		return &generation.Response{Text: "4"}, nil
	}}

	o := newTestOrchestrator(NewRegistry(nil, nil, gen, nil))
	_, err := o.Run(context.Background(), minimalGraph(), "")
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.GetErrorCode(err))
	assert.Equal(t, "q1", types.GetNodeID(err))
	assert.False(t, invoked, "generator must not run without a query")
}

func TestOrchestratorMissingRequiredInput(t *testing.T) {
	t.Parallel()

	// The output node is wired from the query's port, so no response ever
	// arrives on its required input.
	g := &Graph{
		Nodes: []Node{
			{ID: "q1", Type: NodeUserQuery},
			{ID: "l1", Type: NodeLLMEngine},
			{ID: "o1", Type: NodeOutput},
		},
		Connections: []Edge{
			{Source: "q1", Target: "l1"},
			{Source: "l1", Target: "o1", SourceHandle: PortQuery, TargetHandle: PortQuery},
		},
	}

	o := newTestOrchestrator(NewRegistry(nil, nil, arithmeticGenerator(), nil))
	_, err := o.Run(context.Background(), g, "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.GetErrorCode(err))
	assert.Equal(t, "o1", types.GetNodeID(err))
	assert.Contains(t, err.Error(), `missing required input "response"`)
}

func TestOrchestratorExplicitHandles(t *testing.T) {
	t.Parallel()

	retriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return []retrieval.Passage{{Content: "ctx text", SourceID: "doc-1"}}, nil
	}}
	var system string
	gen := stubGenerator{fn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
		system = req.System
		return &generation.Response{Text: "ok"}, nil
	}}

	g := &Graph{
		Nodes: []Node{
			{ID: "q1", Type: NodeUserQuery},
			{ID: "kb1", Type: NodeKnowledgeBase},
			{ID: "l1", Type: NodeLLMEngine},
			{ID: "o1", Type: NodeOutput},
		},
		Connections: []Edge{
			{Source: "q1", Target: "kb1", SourceHandle: PortQuery, TargetHandle: PortQuery},
			{Source: "q1", Target: "l1", SourceHandle: PortQuery, TargetHandle: PortQuery},
			{Source: "kb1", Target: "l1", SourceHandle: PortContext, TargetHandle: PortContext},
			{Source: "l1", Target: "o1", SourceHandle: PortResponse, TargetHandle: PortResponse},
		},
	}

	o := newTestOrchestrator(NewRegistry(retriever, nil, gen, nil))
	res, err := o.Run(context.Background(), g, "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.Contains(t, system, "ctx text")
}

func TestOrchestratorConcurrentBranches(t *testing.T) {
	t.Parallel()

	var inflight, peak int32
	retriever := stubRetriever{fn: func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return []retrieval.Passage{{Content: "c", SourceID: "doc-" + q.DocumentID}}, nil
	}}

	g := &Graph{
		Nodes: []Node{
			{ID: "q1", Type: NodeUserQuery},
			{ID: "kb-a", Type: NodeKnowledgeBase, Config: NodeConfig{DocumentID: "a"}},
			{ID: "kb-b", Type: NodeKnowledgeBase, Config: NodeConfig{DocumentID: "b"}},
			{ID: "l1", Type: NodeLLMEngine},
			{ID: "o1", Type: NodeOutput, Config: NodeConfig{ShowSources: true}},
		},
		Connections: []Edge{
			{Source: "q1", Target: "kb-a"},
			{Source: "q1", Target: "kb-b"},
			{Source: "kb-a", Target: "l1"},
			{Source: "kb-b", Target: "l1"},
			{Source: "q1", Target: "l1"},
			{Source: "l1", Target: "o1"},
		},
	}

	o := newTestOrchestrator(NewRegistry(retriever, nil, arithmeticGenerator(), nil), WithConcurrency())
	res, err := o.Run(context.Background(), g, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, res.Sources)
	assert.Len(t, res.NodeTimingsMS, 5)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestOrchestratorProgressEvents(t *testing.T) {
	t.Parallel()

	var events []Event
	o := newTestOrchestrator(
		NewRegistry(nil, nil, arithmeticGenerator(), nil),
		WithProgress(func(ev Event) { events = append(events, ev) }),
	)

	_, err := o.Run(context.Background(), minimalGraph(), "q")
	require.NoError(t, err)

	require.Len(t, events, 6)
	assert.Equal(t, "q1", events[0].NodeID)
	assert.Equal(t, EventRunning, events[0].State)
	assert.Equal(t, EventCompleted, events[1].State)
	assert.Equal(t, "o1", events[5].NodeID)
	assert.Equal(t, EventCompleted, events[5].State)
}

func TestOrchestratorSnapshotIsolation(t *testing.T) {
	t.Parallel()

	g := minimalGraph()
	o := newTestOrchestrator(NewRegistry(nil, nil, arithmeticGenerator(), nil))

	res, err := o.Run(context.Background(), g, "q")
	require.NoError(t, err)
	assert.Equal(t, "4", res.Response)

	// The caller's graph is untouched after the run.
	assert.Len(t, g.Nodes, 3)
	assert.Equal(t, "q1", g.Nodes[0].ID)
}
