package workflow

import (
	"errors"
	"fmt"
)

// ValidationResult is the verdict of Validate. Errors is empty iff Valid.
// ExecutionOrder is populated only for valid graphs so callers do not need
// to run the planner a second time.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	NodeCount       int      `json:"node_count"`
	ConnectionCount int      `json:"connection_count"`
	ExecutionOrder  []string `json:"execution_order,omitempty"`

	// cycleNodes carries the planner's cycle members so Run can classify
	// the failure without re-planning an invalid graph.
	cycleNodes []string
}

func displayName(t NodeType) string {
	switch t {
	case NodeUserQuery:
		return "User Query"
	case NodeKnowledgeBase:
		return "Knowledge Base"
	case NodeLLMEngine:
		return "LLM Engine"
	case NodeOutput:
		return "Output"
	default:
		return string(t)
	}
}

// Validate checks the structural and semantic invariants of a graph snapshot.
// It is a pure function: no side effects, no collaborator calls. Structural
// defects short-circuit later stages; type-presence defects accumulate so the
// caller sees every missing node at once.
func Validate(g *Graph) ValidationResult {
	result := ValidationResult{
		NodeCount:       len(g.Nodes),
		ConnectionCount: len(g.Connections),
	}

	if len(g.Nodes) == 0 {
		result.Errors = append(result.Errors, "workflow must contain at least one node")
		return result
	}

	for _, t := range MandatoryNodeTypes {
		if !g.HasType(t) {
			result.Errors = append(result.Errors, fmt.Sprintf("Missing %s node", displayName(t)))
		}
	}

	// Structural checks: duplicate ids, unknown node types, edge endpoints,
	// self-loops. Failures here make the later graph-shape checks
	// meaningless, so they end validation.
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if seen[n.ID] {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true

		switch n.Type {
		case NodeUserQuery, NodeKnowledgeBase, NodeLLMEngine, NodeOutput:
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
	}
	for _, e := range g.Connections {
		if !seen[e.Source] {
			result.Errors = append(result.Errors, fmt.Sprintf("connection source %q not found in nodes", e.Source))
		}
		if !seen[e.Target] {
			result.Errors = append(result.Errors, fmt.Sprintf("connection target %q not found in nodes", e.Target))
		}
		if e.Source == e.Target {
			result.Errors = append(result.Errors, fmt.Sprintf("node %q connects to itself", e.Source))
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	order, err := Plan(g)
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			result.Errors = append(result.Errors, cycle.Error())
			result.cycleNodes = cycle.Nodes
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	// Connectivity: every node except User Query must be fed by at least one
	// edge, and the Output must sit downstream of the LLM Engine. These
	// reachability checks replace the looser raw edge-count heuristic.
	inDegree := g.InDegrees()
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type != NodeUserQuery && inDegree[n.ID] == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("node %q has no incoming connection", n.ID))
		}
	}
	for _, llmID := range g.NodesByType(NodeLLMEngine) {
		connected := false
		for _, outID := range g.NodesByType(NodeOutput) {
			if g.Reachable(llmID, outID) {
				connected = true
				break
			}
		}
		if !connected && g.HasType(NodeOutput) {
			result.Errors = append(result.Errors, fmt.Sprintf("no Output node is reachable from LLM Engine %q", llmID))
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	// Per-type configuration sanity. Soft issues become warnings and fall
	// back to documented defaults at execution time.
	for i := range g.Nodes {
		n := &g.Nodes[i]
		switch n.Type {
		case NodeLLMEngine:
			if n.Config.Model == "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("LLM Engine %q has no model configured, using default %q", n.ID, DefaultModel))
			}
		case NodeKnowledgeBase:
			if n.Config.SimilarityThreshold < 0 || n.Config.SimilarityThreshold > 1 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Knowledge Base %q similarity threshold out of range, using default %v", n.ID, DefaultSimilarityThreshold))
			}
		}
	}

	result.Valid = true
	result.ExecutionOrder = order
	return result
}
