// Package websearch defines the web search collaborator contract and HTTP
// clients for the supported providers (SerpAPI, Brave).
package websearch

import (
	"context"
	"fmt"
	"strings"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher is the narrow interface the workflow engine calls. Search is
// read-only and idempotent, so the engine may retry it on transient failures.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Disabled is a Searcher that always returns no results. Used when no
// provider is configured.
type Disabled struct{}

// Search implements Searcher.
func (Disabled) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return nil, nil
}

// FormatContext renders results as a numbered context block for prompt
// assembly.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\nSource: %s\n\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
