package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/internal/cache"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(zap.NewNop())
	s.Add("doc-1", "doc-1#0", "Go is a statically typed compiled language")
	s.Add("doc-1", "doc-1#1", "The Go scheduler multiplexes goroutines onto OS threads")
	s.Add("doc-2", "doc-2#0", "Rust guarantees memory safety without garbage collection")
	return s
}

func TestMemoryStore_Search(t *testing.T) {
	t.Parallel()
	s := seedStore(t)

	passages, err := s.Search(context.Background(), Query{
		Text:                "Go language",
		MaxResults:          5,
		SimilarityThreshold: 0.3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "doc-1#0", passages[0].SourceID)
	for _, p := range passages {
		assert.GreaterOrEqual(t, p.Score, 0.3)
	}
}

func TestMemoryStore_DocumentFilter(t *testing.T) {
	t.Parallel()
	s := seedStore(t)

	passages, err := s.Search(context.Background(), Query{
		Text:       "memory safety garbage collection",
		DocumentID: "doc-2",
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "doc-2#0", passages[0].SourceID)
}

func TestMemoryStore_MaxResults(t *testing.T) {
	t.Parallel()
	s := seedStore(t)

	passages, err := s.Search(context.Background(), Query{Text: "Go", MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, passages, 1)
}

func TestQdrantStore_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/search", r.URL.Path)

		var req qdrantSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Limit)
		assert.InDelta(t, 0.7, req.ScoreThreshold, 1e-9)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": []map[string]any{
				{"score": 0.91, "payload": map[string]any{"text": "passage one", "chunk_id": "d1#0"}},
				{"score": 0.74, "payload": map[string]any{"text": "passage two", "chunk_id": "d1#3"}},
			},
		})
	}))
	defer srv.Close()

	store := NewQdrantStore(QdrantConfig{
		BaseURL:    srv.URL,
		Collection: "docs",
	}, embedFunc(func(ctx context.Context, text string) ([]float64, error) {
		return []float64{0.1, 0.2, 0.3}, nil
	}), zap.NewNop())

	passages, err := store.Search(context.Background(), Query{
		Text:                "what is in passage one",
		MaxResults:          2,
		SimilarityThreshold: 0.7,
	})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "passage one", passages[0].Content)
	assert.Equal(t, "d1#0", passages[0].SourceID)
	assert.InDelta(t, 0.91, passages[0].Score, 1e-9)
}

func TestQdrantStore_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewQdrantStore(QdrantConfig{BaseURL: srv.URL, Collection: "missing"},
		embedFunc(func(ctx context.Context, text string) ([]float64, error) {
			return []float64{0.1}, nil
		}), zap.NewNop())

	_, err := store.Search(context.Background(), Query{Text: "q"})
	assert.ErrorContains(t, err, "status=404")
}

type embedFunc func(ctx context.Context, text string) ([]float64, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float64, error) { return f(ctx, text) }

type countingRetriever struct {
	inner Retriever
	calls int
}

func (c *countingRetriever) Search(ctx context.Context, q Query) ([]Passage, error) {
	c.calls++
	return c.inner.Search(ctx, q)
}

func TestCachedRetriever(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	mgr, err := cache.NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	counting := &countingRetriever{inner: seedStore(t)}
	cached := NewCachedRetriever(counting, mgr, time.Minute, zap.NewNop())

	q := Query{Text: "Go language", MaxResults: 3, SimilarityThreshold: 0.3}

	first, err := cached.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls, "second search should be served from cache")

	// A different query misses the cache.
	_, err = cached.Search(context.Background(), Query{Text: "scheduler", MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
}
