package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/genflow-ai/genflow/types"
)

// ExecutionResult is the payload returned for a completed run.
// ExecutionTimeMS is the sum of executor durations, not wall time.
type ExecutionResult struct {
	Response        string             `json:"response"`
	Sources         []string           `json:"sources"`
	ExecutionTimeMS float64            `json:"execution_time_ms"`
	ExecutionOrder  []string           `json:"execution_order"`
	NodeTimingsMS   map[string]float64 `json:"node_timings_ms,omitempty"`
}

// EventState describes a node's lifecycle inside a run.
type EventState string

const (
	EventRunning   EventState = "running"
	EventCompleted EventState = "completed"
	EventFailed    EventState = "failed"
)

// Event is emitted around each node execution when a progress callback is
// registered.
type Event struct {
	NodeID   string
	NodeType NodeType
	State    EventState
	Duration time.Duration
	Err      error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.With(zap.String("component", "orchestrator"))
		}
	}
}

// WithConcurrency enables concurrent execution of sibling branches. Nodes on
// the same dependency level run in parallel; results stay deterministic
// because bus writes are keyed by node and sources are sorted on read.
func WithConcurrency() Option {
	return func(o *Orchestrator) { o.concurrent = true }
}

// WithProgress registers a callback invoked around each node execution.
func WithProgress(fn func(Event)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// Orchestrator drives a graph snapshot through validation, planning and
// node-by-node execution.
type Orchestrator struct {
	registry   Registry
	logger     *zap.Logger
	concurrent bool
	onProgress func(Event)
}

// NewOrchestrator creates an orchestrator over the given executor registry.
func NewOrchestrator(registry Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates the graph, derives the execution order and executes every
// node. The graph is cloned first so concurrent editor changes cannot affect
// an in-flight run. The first node failure aborts the run with the node id
// attached to the returned error.
func (o *Orchestrator) Run(ctx context.Context, g *Graph, query string) (*ExecutionResult, error) {
	snapshot := g.Clone()

	verdict := Validate(snapshot)
	if !verdict.Valid {
		if len(verdict.cycleNodes) > 0 {
			return nil, types.NewError(types.ErrCycleDetected, (&CycleError{Nodes: verdict.cycleNodes}).Error())
		}
		return nil, types.NewError(types.ErrValidation, strings.Join(verdict.Errors, "; "))
	}
	order := verdict.ExecutionOrder

	o.logger.Info("execution started",
		zap.Int("nodes", len(snapshot.Nodes)),
		zap.Strings("order", order),
		zap.Bool("concurrent", o.concurrent))

	ec := NewExecutionContext(query)
	incoming := snapshot.Incoming()

	var err error
	if o.concurrent {
		err = o.runLevels(ctx, snapshot, order, incoming, ec)
	} else {
		err = o.runSequential(ctx, snapshot, order, incoming, ec)
	}
	if err != nil {
		o.logger.Warn("execution failed",
			zap.String("node_id", types.GetNodeID(err)),
			zap.Error(err))
		return nil, err
	}

	result := o.collect(snapshot, order, ec)
	o.logger.Info("execution finished",
		zap.Float64("execution_time_ms", result.ExecutionTimeMS),
		zap.Int("sources", len(result.Sources)))
	return result, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, g *Graph, order []string, incoming map[string][]Edge, ec *ExecutionContext) error {
	for _, id := range order {
		// Cancellation is observed at node boundaries; a node that already
		// started runs to completion or to its own timeout.
		if ctx.Err() != nil {
			return types.NewError(types.ErrCancelled, "execution cancelled").WithCause(ctx.Err())
		}
		if err := o.runNode(ctx, g, id, incoming, ec); err != nil {
			return err
		}
	}
	return nil
}

// runLevels executes the plan wave by wave: each wave holds the nodes whose
// predecessors have all completed, and the nodes of a wave run concurrently.
func (o *Orchestrator) runLevels(ctx context.Context, g *Graph, order []string, incoming map[string][]Edge, ec *ExecutionContext) error {
	done := make(map[string]bool, len(order))
	remaining := append([]string(nil), order...)

	for len(remaining) > 0 {
		if ctx.Err() != nil {
			return types.NewError(types.ErrCancelled, "execution cancelled").WithCause(ctx.Err())
		}

		var wave, rest []string
		for _, id := range remaining {
			ready := true
			for _, e := range incoming[id] {
				if !done[e.Source] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, id)
			} else {
				rest = append(rest, id)
			}
		}
		if len(wave) == 0 {
			return types.NewError(types.ErrInternalError, "scheduler stalled with nodes remaining")
		}

		grp, grpCtx := errgroup.WithContext(ctx)
		for _, id := range wave {
			grp.Go(func() error {
				return o.runNode(grpCtx, g, id, incoming, ec)
			})
		}
		if err := grp.Wait(); err != nil {
			return err
		}

		for _, id := range wave {
			done[id] = true
		}
		remaining = rest
	}
	return nil
}

func (o *Orchestrator) runNode(ctx context.Context, g *Graph, id string, incoming map[string][]Edge, ec *ExecutionContext) error {
	node, ok := g.NodeByID(id)
	if !ok {
		return types.NewError(types.ErrInternalError, fmt.Sprintf("planned node %q not in graph", id))
	}
	exec, ok := o.registry[node.Type]
	if !ok {
		return types.NewError(types.ErrConfig, fmt.Sprintf("no executor registered for type %q", node.Type)).WithNodeID(id)
	}

	inputs, err := o.gatherInputs(g, node, exec, incoming[id], ec)
	if err != nil {
		return err
	}

	o.emit(Event{NodeID: id, NodeType: node.Type, State: EventRunning})
	o.logger.Debug("node started", zap.String("node_id", id), zap.String("type", string(node.Type)))

	start := time.Now()
	outputs, err := exec.Execute(ctx, node, inputs)
	elapsed := time.Since(start)
	ec.RecordTiming(id, elapsed)

	if err != nil {
		o.emit(Event{NodeID: id, NodeType: node.Type, State: EventFailed, Duration: elapsed, Err: err})
		return asCollaboratorError(err, id, fmt.Sprintf("node %q failed", id))
	}

	for port, value := range outputs {
		ec.Set(id, port, value)
		if port == PortSources {
			ec.AddSources(toStringSlice(value))
		}
	}

	o.emit(Event{NodeID: id, NodeType: node.Type, State: EventCompleted, Duration: elapsed})
	o.logger.Debug("node finished", zap.String("node_id", id), zap.Duration("elapsed", elapsed))
	return nil
}

// gatherInputs assembles a node's input map from its incoming edges. Edges
// with handles route (source, sourceHandle) to targetHandle; handle-less
// edges copy every source output whose port the target consumes. User Query
// nodes are seeded with the request query directly.
func (o *Orchestrator) gatherInputs(g *Graph, node *Node, exec Executor, edges []Edge, ec *ExecutionContext) (Inputs, error) {
	inputs := make(Inputs)
	if node.Type == NodeUserQuery {
		inputs[PortQuery] = ec.Query()
	}

	consumes := make(map[string]bool)
	for _, p := range exec.RequiredInputs() {
		consumes[p] = true
	}
	for _, p := range exec.OptionalInputs() {
		consumes[p] = true
	}

	// Deterministic merge order regardless of how the editor serialized edges.
	sorted := append([]Edge(nil), edges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].SourceHandle < sorted[j].SourceHandle
	})

	for _, e := range sorted {
		if e.SourceHandle != "" {
			target := e.TargetHandle
			if target == "" {
				target = e.SourceHandle
			}
			if v, ok := ec.Get(e.Source, e.SourceHandle); ok {
				inputs[target] = v
			}
			continue
		}
		src, ok := g.NodeByID(e.Source)
		if !ok {
			continue
		}
		srcExec, ok := o.registry[src.Type]
		if !ok {
			continue
		}
		for _, port := range srcExec.Outputs() {
			if !consumes[port] {
				continue
			}
			if v, ok := ec.Get(e.Source, port); ok {
				inputs[port] = v
			}
		}
	}

	for _, required := range exec.RequiredInputs() {
		if _, ok := inputs[required]; !ok {
			return nil, types.NewError(types.ErrConfig,
				fmt.Sprintf("node %q is missing required input %q", node.ID, required)).
				WithNodeID(node.ID)
		}
	}
	return inputs, nil
}

func (o *Orchestrator) collect(g *Graph, order []string, ec *ExecutionContext) *ExecutionResult {
	result := &ExecutionResult{
		Sources:        []string{},
		ExecutionOrder: order,
	}

	outputs := g.NodesByType(NodeOutput)
	for _, id := range outputs {
		if v, ok := ec.Get(id, PortResponse); ok {
			result.Response, _ = v.(string)
		}
	}

	showSources := false
	for _, id := range outputs {
		if n, ok := g.NodeByID(id); ok && n.Config.ShowSources {
			showSources = true
		}
	}
	if showSources {
		result.Sources = ec.Sources()
	}

	result.ExecutionTimeMS = float64(ec.TotalDuration()) / float64(time.Millisecond)
	result.NodeTimingsMS = make(map[string]float64)
	for id, d := range ec.NodeTimings() {
		result.NodeTimingsMS[id] = float64(d) / float64(time.Millisecond)
	}
	return result
}

func (o *Orchestrator) emit(ev Event) {
	if o.onProgress != nil {
		o.onProgress(ev)
	}
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}
