package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanLinear(t *testing.T) {
	t.Parallel()

	order, err := Plan(minimalGraph())
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "l1", "o1"}, order)
}

func TestPlanDiamond(t *testing.T) {
	t.Parallel()

	order, err := Plan(ragGraph())
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "kb1", "l1", "o1"}, order)
}

func TestPlanTieBreakAscending(t *testing.T) {
	t.Parallel()

	// Two independent roots feeding one sink. The smaller id must run first
	// no matter how the nodes were serialized.
	g := &Graph{
		Nodes: []Node{
			{ID: "b", Type: NodeUserQuery},
			{ID: "a", Type: NodeUserQuery},
			{ID: "c", Type: NodeOutput},
		},
		Connections: []Edge{
			{Source: "b", Target: "c"},
			{Source: "a", Target: "c"},
		},
	}
	order, err := Plan(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPlanDeterministic(t *testing.T) {
	t.Parallel()

	g := ragGraph()
	first, err := Plan(g)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Plan(g)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPlanCycle(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Nodes: []Node{
			{ID: "q1", Type: NodeUserQuery},
			{ID: "l1", Type: NodeLLMEngine},
			{ID: "o1", Type: NodeOutput},
		},
		Connections: []Edge{
			{Source: "q1", Target: "l1"},
			{Source: "l1", Target: "o1"},
			{Source: "o1", Target: "l1"},
		},
	}
	_, err := Plan(g)
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"l1", "o1"}, cycle.Nodes)
	assert.Contains(t, cycle.Error(), "cycle")
}

func TestPlanWideFanOut(t *testing.T) {
	t.Parallel()

	g := &Graph{Nodes: []Node{{ID: "root", Type: NodeUserQuery}}}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("kb%02d", i)
		g.Nodes = append(g.Nodes, Node{ID: id, Type: NodeKnowledgeBase})
		g.Connections = append(g.Connections, Edge{Source: "root", Target: id})
	}
	order, err := Plan(g)
	require.NoError(t, err)
	require.Len(t, order, 11)
	assert.Equal(t, "root", order[0])
	// Siblings released together come out in ascending id order.
	for i := 1; i < 10; i++ {
		assert.Less(t, order[i], order[i+1])
	}
}
