package workflow

import (
	"sort"
	"sync"
	"time"
)

// ExecutionContext is the per-request context bus. It routes values produced
// by one node to the inputs of its successors, keyed by (node id, port). Each
// context is owned by exactly one orchestrator run; the mutex only exists so
// sibling branches may execute concurrently, never to share state across runs.
type ExecutionContext struct {
	query string

	mu      sync.RWMutex
	values  map[busKey]any
	sources map[string]struct{}
	timings map[string]time.Duration
}

type busKey struct {
	nodeID string
	port   string
}

// NewExecutionContext creates a context bus seeded with the request query.
func NewExecutionContext(query string) *ExecutionContext {
	return &ExecutionContext{
		query:   query,
		values:  make(map[busKey]any),
		sources: make(map[string]struct{}),
		timings: make(map[string]time.Duration),
	}
}

// Query returns the original user query carried by the execution request.
func (ec *ExecutionContext) Query() string {
	return ec.query
}

// Set stores a node output under (nodeID, port).
func (ec *ExecutionContext) Set(nodeID, port string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.values[busKey{nodeID, port}] = value
}

// Get retrieves the value produced by a specific node on a specific port.
func (ec *ExecutionContext) Get(nodeID, port string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.values[busKey{nodeID, port}]
	return v, ok
}

// AddSources accumulates citation identifiers produced anywhere in the run.
func (ec *ExecutionContext) AddSources(ids []string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			ec.sources[id] = struct{}{}
		}
	}
}

// Sources returns the accumulated citations sorted ascending. Sorting keeps
// the result deterministic even when sibling branches completed in arbitrary
// order.
func (ec *ExecutionContext) Sources() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]string, 0, len(ec.sources))
	for id := range ec.sources {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RecordTiming stores the executor duration for one node.
func (ec *ExecutionContext) RecordTiming(nodeID string, d time.Duration) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.timings[nodeID] = d
}

// NodeTimings returns a copy of the per-node executor durations.
func (ec *ExecutionContext) NodeTimings() map[string]time.Duration {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]time.Duration, len(ec.timings))
	for k, v := range ec.timings {
		out[k] = v
	}
	return out
}

// TotalDuration is the sum of executor durations. Reporting the sum rather
// than wall time keeps engine overhead distinguishable from collaborator
// latency in diagnostics.
func (ec *ExecutionContext) TotalDuration() time.Duration {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	var total time.Duration
	for _, d := range ec.timings {
		total += d
	}
	return total
}
