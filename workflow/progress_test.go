package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepTitles(steps []Step) []string {
	titles := make([]string, len(steps))
	for i, s := range steps {
		titles[i] = s.Title
	}
	return titles
}

func TestStepsMinimalGraph(t *testing.T) {
	t.Parallel()

	steps := Steps(minimalGraph())
	assert.Equal(t, []string{
		"Processing Query",
		"Generating Response",
		"Finalizing Output",
	}, stepTitles(steps))
}

func TestStepsWithKnowledgeBase(t *testing.T) {
	t.Parallel()

	steps := Steps(ragGraph())
	assert.Equal(t, []string{
		"Processing Query",
		"Searching Knowledge Base",
		"Generating Response",
		"Finalizing Output",
	}, stepTitles(steps))
}

func TestStepsWithWebSearch(t *testing.T) {
	t.Parallel()

	g := ragGraph()
	g.Nodes[2].Config.EnableWebSearch = true
	steps := Steps(g)
	assert.Equal(t, []string{
		"Processing Query",
		"Searching Knowledge Base",
		"Searching the Web",
		"Generating Response",
		"Finalizing Output",
	}, stepTitles(steps))
}

func TestStepsBookendsAlwaysPresent(t *testing.T) {
	t.Parallel()

	steps := Steps(&Graph{})
	require.Len(t, steps, 2)
	assert.Equal(t, "Processing Query", steps[0].Title)
	assert.Equal(t, "Finalizing Output", steps[1].Title)
	assert.NotEmpty(t, steps[0].Description)
}
