package testutil

import "github.com/genflow-ai/genflow/workflow"

// MinimalGraph returns the smallest executable graph: query, engine, output.
func MinimalGraph() *workflow.Graph {
	return &workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "q1", Type: workflow.NodeUserQuery},
			{ID: "l1", Type: workflow.NodeLLMEngine},
			{ID: "o1", Type: workflow.NodeOutput},
		},
		Connections: []workflow.Edge{
			{Source: "q1", Target: "l1"},
			{Source: "l1", Target: "o1"},
		},
	}
}

// RAGGraph returns a retrieval-augmented graph with a knowledge base branch
// feeding the engine alongside the raw query.
func RAGGraph() *workflow.Graph {
	return &workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "q1", Type: workflow.NodeUserQuery},
			{ID: "kb1", Type: workflow.NodeKnowledgeBase},
			{ID: "l1", Type: workflow.NodeLLMEngine},
			{ID: "o1", Type: workflow.NodeOutput, Config: workflow.NodeConfig{ShowSources: true}},
		},
		Connections: []workflow.Edge{
			{Source: "q1", Target: "kb1"},
			{Source: "q1", Target: "l1"},
			{Source: "kb1", Target: "l1"},
			{Source: "l1", Target: "o1"},
		},
	}
}
