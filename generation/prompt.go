package generation

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Default instructions mirror the product behavior: with retrieved context the
// model must answer strictly from it; without context it answers freely.
const (
	strictContextPrompt = "You are a helpful AI assistant. You MUST use ONLY the context provided below to answer questions. " +
		"DO NOT use your general knowledge or training data. " +
		"If the answer is not found in the provided context, respond with 'I don't have that information in the uploaded documents.' " +
		"Always base your answers strictly on the provided context."

	generalPrompt = "You are a helpful AI assistant. Answer the user's question to the best of your ability."

	// DefaultContextTokenBudget caps how many tokens of retrieved context are
	// folded into the prompt.
	DefaultContextTokenBudget = 3000
)

// PromptInput collects everything that feeds prompt assembly.
type PromptInput struct {
	Query            string
	KnowledgeContext string
	WebContext       string
	CustomSystem     string
	Model            string
	// ContextTokenBudget overrides DefaultContextTokenBudget when positive.
	ContextTokenBudget int
}

// BuildPrompt assembles the system and user messages for a completion call.
// Retrieved context is truncated to the token budget before assembly so an
// oversized knowledge base cannot push the question out of the model window.
func BuildPrompt(in PromptInput) (system, user string) {
	budget := in.ContextTokenBudget
	if budget <= 0 {
		budget = DefaultContextTokenBudget
	}
	knowledge := TruncateTokens(in.KnowledgeContext, in.Model, budget)
	web := TruncateTokens(in.WebContext, in.Model, budget)

	var parts []string
	switch {
	case strings.TrimSpace(in.CustomSystem) != "":
		parts = append(parts, strings.TrimSpace(in.CustomSystem))
	case knowledge != "" || web != "":
		parts = append(parts, strictContextPrompt)
	default:
		parts = append(parts, generalPrompt)
	}

	if knowledge != "" {
		parts = append(parts, "\n--- KNOWLEDGE BASE CONTEXT ---\n"+knowledge, "--- END KNOWLEDGE BASE CONTEXT ---")
	}
	if web != "" {
		parts = append(parts, "\n--- WEB SEARCH CONTEXT ---\n"+web, "--- END WEB SEARCH CONTEXT ---")
	}
	if knowledge != "" || web != "" {
		parts = append(parts,
			"\nCRITICAL INSTRUCTIONS:"+
				"\n- ONLY use information from the context provided above"+
				"\n- If the context contains the answer, use it exactly as provided"+
				"\n- If the context doesn't contain the answer, say 'I don't have that information in the uploaded documents.'"+
				"\n- Do not make assumptions or add information not in the context")
	}
	system = strings.Join(parts, "\n")

	if knowledge != "" {
		user = "Context from uploaded documents:\n" + knowledge +
			"\n\nQuestion: " + in.Query +
			"\n\nPlease answer the question using ONLY the context provided above."
	} else {
		user = in.Query
	}
	return system, user
}

// TruncateTokens cuts text to at most maxTokens tokens for the given model.
// Unknown models fall back to the cl100k_base encoding.
func TruncateTokens(text, model string, maxTokens int) string {
	if text == "" || maxTokens <= 0 {
		return text
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// No encoder available; fall back to a rough character cut.
			if len(text) > maxTokens*4 {
				return text[:maxTokens*4]
			}
			return text
		}
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
