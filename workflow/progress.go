package workflow

// Step is one entry in the user-facing progress timeline derived from a graph
// before execution starts.
type Step struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Steps projects a graph onto the progress timeline shown while a run is in
// flight. The projection is static: it depends only on which node types are
// present, never on runtime state, so the UI can render it before the first
// node executes. Bookends are always present; middle steps appear per
// capability.
func Steps(g *Graph) []Step {
	steps := []Step{
		{Title: "Processing Query", Description: "Reading the submitted question"},
	}
	if g.HasType(NodeKnowledgeBase) {
		steps = append(steps, Step{
			Title:       "Searching Knowledge Base",
			Description: "Retrieving relevant passages from uploaded documents",
		})
	}
	if g.HasType(NodeLLMEngine) {
		webSearch := false
		for i := range g.Nodes {
			if g.Nodes[i].Type == NodeLLMEngine && g.Nodes[i].Config.EnableWebSearch {
				webSearch = true
				break
			}
		}
		if webSearch {
			steps = append(steps, Step{
				Title:       "Searching the Web",
				Description: "Gathering supplemental results from web search",
			})
		}
		steps = append(steps, Step{
			Title:       "Generating Response",
			Description: "Composing an answer with the language model",
		})
	}
	steps = append(steps, Step{
		Title:       "Finalizing Output",
		Description: "Packaging the response and citations",
	})
	return steps
}
