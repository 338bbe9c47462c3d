package workflow

import (
	"sort"
)

// NodeType identifies the processing step a node performs. The set is closed:
// the engine dispatches on these values through a static executor table.
type NodeType string

const (
	// NodeUserQuery emits the literal query text of the execution request.
	NodeUserQuery NodeType = "user_query"
	// NodeKnowledgeBase retrieves supporting passages from the retrieval collaborator.
	NodeKnowledgeBase NodeType = "knowledge_base"
	// NodeLLMEngine generates a response via the generation collaborator.
	NodeLLMEngine NodeType = "llm_engine"
	// NodeOutput packages the final response and citations.
	NodeOutput NodeType = "output"
)

// MandatoryNodeTypes are the types every executable graph must contain.
// KnowledgeBase is optional: retrieval context is additive, not required.
var MandatoryNodeTypes = []NodeType{NodeUserQuery, NodeLLMEngine, NodeOutput}

// Context bus port names. Executors declare which ports they consume and
// produce; the orchestrator wires values between them.
const (
	PortQuery    = "query"
	PortContext  = "context"
	PortSources  = "sources"
	PortResponse = "response"
)

// NodeConfig carries node-specific options. The schema depends on the node
// type; unused fields are left at their zero value. Field names mirror the
// editor payload.
type NodeConfig struct {
	// Knowledge base options.
	DocumentID          string  `json:"documentId,omitempty"`
	MaxResults          int     `json:"maxResults,omitempty"`
	SimilarityThreshold float64 `json:"similarityThreshold,omitempty"`
	// Strict makes retrieval failures fatal instead of degrading to an
	// empty context.
	Strict bool `json:"strict,omitempty"`

	// LLM engine options.
	Model           string  `json:"model,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxTokens       int     `json:"maxTokens,omitempty"`
	SystemPrompt    string  `json:"systemPrompt,omitempty"`
	EnableWebSearch bool    `json:"enableWebSearch,omitempty"`
	APIKey          string  `json:"apiKey,omitempty"`

	// Output options.
	ShowSources bool `json:"showSources,omitempty"`

	// Design-time placeholder text; overridden by the request query at
	// execution time.
	Placeholder string `json:"placeholder,omitempty"`
}

// Node is one typed processing step in a user-authored graph.
type Node struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	Config NodeConfig `json:"config"`
}

// Edge is a directed connection from one node's output port to another
// node's input port. Handles are optional; when absent the engine routes by
// matching port names between the two executors.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Graph is the set of nodes and connections at the moment of submission.
// The engine operates on a snapshot; concurrent editor changes never affect
// an in-flight execution.
type Graph struct {
	Nodes       []Node `json:"nodes"`
	Connections []Edge `json:"connections"`
}

// Clone returns a deep copy used as the immutable execution snapshot.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:       make([]Node, len(g.Nodes)),
		Connections: make([]Edge, len(g.Connections)),
	}
	copy(c.Nodes, g.Nodes)
	copy(c.Connections, g.Connections)
	return c
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// NodesByType returns the ids of all nodes of the given type, in ascending order.
func (g *Graph) NodesByType(t NodeType) []string {
	var ids []string
	for i := range g.Nodes {
		if g.Nodes[i].Type == t {
			ids = append(ids, g.Nodes[i].ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasType reports whether at least one node of the given type is present.
func (g *Graph) HasType(t NodeType) bool {
	for i := range g.Nodes {
		if g.Nodes[i].Type == t {
			return true
		}
	}
	return false
}

// Incoming returns the edges targeting each node id.
func (g *Graph) Incoming() map[string][]Edge {
	in := make(map[string][]Edge, len(g.Nodes))
	for _, e := range g.Connections {
		in[e.Target] = append(in[e.Target], e)
	}
	return in
}

// Outgoing returns the adjacency list of the graph: source id to target ids.
func (g *Graph) Outgoing() map[string][]string {
	out := make(map[string][]string, len(g.Nodes))
	for i := range g.Nodes {
		out[g.Nodes[i].ID] = nil
	}
	for _, e := range g.Connections {
		out[e.Source] = append(out[e.Source], e.Target)
	}
	return out
}

// InDegrees returns the number of incoming edges per node id.
func (g *Graph) InDegrees() map[string]int {
	in := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		in[g.Nodes[i].ID] = 0
	}
	for _, e := range g.Connections {
		in[e.Target]++
	}
	return in
}

// Reachable reports whether target is reachable from source following edges.
func (g *Graph) Reachable(source, target string) bool {
	if source == target {
		return true
	}
	out := g.Outgoing()
	seen := map[string]bool{source: true}
	stack := []string{source}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range out[id] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
