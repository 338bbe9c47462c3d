package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory keyword retriever for development and tests.
// Scoring is term overlap between query and passage, which is enough to
// exercise threshold and ranking behavior without an embedding model.
type MemoryStore struct {
	mu       sync.RWMutex
	passages []Passage
	docIDs   map[string]string // source id -> owning document id
	logger   *zap.Logger
}

// NewMemoryStore creates an empty in-memory retriever.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		docIDs: make(map[string]string),
		logger: logger.With(zap.String("component", "memory_store")),
	}
}

// Add stores a passage under the given document.
func (s *MemoryStore) Add(documentID, sourceID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = append(s.passages, Passage{Content: content, SourceID: sourceID})
	s.docIDs[sourceID] = documentID
}

// Count returns the number of stored passages.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// Search implements Retriever.
func (s *MemoryStore) Search(ctx context.Context, q Query) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := tokenize(q.Text)
	results := make([]Passage, 0, len(s.passages))
	for _, p := range s.passages {
		if q.DocumentID != "" && s.docIDs[p.SourceID] != q.DocumentID {
			continue
		}
		score := overlapScore(terms, tokenize(p.Content))
		if score < q.SimilarityThreshold {
			continue
		}
		scored := p
		scored.Score = score
		results = append(results, scored)
	}

	// Descending by score, ties broken by source id for stable output.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SourceID < results[j].SourceID
	})

	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}

	s.logger.Debug("memory store search",
		zap.String("query", q.Text),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

// overlapScore is the fraction of query terms present in the passage.
func overlapScore(query, passage map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := passage[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
