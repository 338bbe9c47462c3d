package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSerpAPIClient_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "golang workflows", q.Get("q"))
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "google", q.Get("engine"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]any{
				{"title": "First", "link": "https://a.example", "snippet": "alpha"},
				{"title": "Second", "link": "https://b.example", "snippet": "beta"},
				{"title": "Third", "link": "https://c.example", "snippet": "gamma"},
			},
		})
	}))
	defer srv.Close()

	c := NewSerpAPIClient(SerpAPIConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())

	results, err := c.Search(context.Background(), "golang workflows", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].Title)
	assert.Equal(t, "https://b.example", results[1].URL)
}

func TestSerpAPIClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewSerpAPIClient(SerpAPIConfig{APIKey: "bad", BaseURL: srv.URL}, zap.NewNop())

	_, err := c.Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "status=401")
}

func TestBraveClient_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]any{
					{"title": "Brave hit", "url": "https://d.example", "description": "delta"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewBraveClient(BraveConfig{APIKey: "brave-key", BaseURL: srv.URL}, zap.NewNop())

	results, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Brave hit", results[0].Title)
	assert.Equal(t, "delta", results[0].Snippet)
}

func TestDisabled_Search(t *testing.T) {
	t.Parallel()

	results, err := Disabled{}.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFormatContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatContext(nil))

	out := FormatContext([]Result{
		{Title: "T1", URL: "https://a.example", Snippet: "S1"},
		{Title: "T2", URL: "https://b.example", Snippet: "S2"},
	})
	assert.Contains(t, out, "1. T1")
	assert.Contains(t, out, "2. T2")
	assert.Contains(t, out, "Source: https://a.example")
}
