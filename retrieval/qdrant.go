package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant-backed Retriever.
type QdrantConfig struct {
	Host       string        `json:"host" yaml:"host"`
	Port       int           `json:"port" yaml:"port"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url"`
	APIKey     string        `json:"api_key,omitempty" yaml:"api_key"`
	Collection string        `json:"collection" yaml:"collection"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// Payload keys for passage content and provenance.
	PayloadContentField string `json:"payload_content_field,omitempty" yaml:"payload_content_field"`
	PayloadSourceField  string `json:"payload_source_field,omitempty" yaml:"payload_source_field"`
	PayloadDocField     string `json:"payload_doc_field,omitempty" yaml:"payload_doc_field"`
}

// QdrantStore implements Retriever against Qdrant's REST API. Query text is
// converted to a vector by the injected Embedder before searching.
type QdrantStore struct {
	cfg      QdrantConfig
	baseURL  string
	client   *http.Client
	embedder Embedder
	logger   *zap.Logger
}

// NewQdrantStore creates a Qdrant-backed Retriever.
func NewQdrantStore(cfg QdrantConfig, embedder Embedder, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PayloadContentField == "" {
		cfg.PayloadContentField = "text"
	}
	if cfg.PayloadSourceField == "" {
		cfg.PayloadSourceField = "chunk_id"
	}
	if cfg.PayloadDocField == "" {
		cfg.PayloadDocField = "document_id"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:      cfg,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: cfg.Timeout},
		embedder: embedder,
		logger:   logger.With(zap.String("component", "qdrant_store")),
	}
}

type qdrantSearchRequest struct {
	Vector         []float64       `json:"vector"`
	Limit          int             `json:"limit"`
	ScoreThreshold float64         `json:"score_threshold,omitempty"`
	WithPayload    bool            `json:"with_payload"`
	Filter         json.RawMessage `json:"filter,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Status string `json:"status"`
}

// Search implements Retriever.
func (s *QdrantStore) Search(ctx context.Context, q Query) ([]Passage, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("qdrant store requires an embedder")
	}
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	vector, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = 5
	}

	body := qdrantSearchRequest{
		Vector:         vector,
		Limit:          limit,
		ScoreThreshold: q.SimilarityThreshold,
		WithPayload:    true,
	}
	if q.DocumentID != "" {
		filter, _ := json.Marshal(map[string]any{
			"must": []map[string]any{
				{"key": s.cfg.PayloadDocField, "match": map[string]any{"value": q.DocumentID}},
			},
		})
		body.Filter = filter
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, url.PathEscape(s.cfg.Collection))
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("qdrant search failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding qdrant response: %w", err)
	}

	passages := make([]Passage, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		content, _ := hit.Payload[s.cfg.PayloadContentField].(string)
		sourceID, _ := hit.Payload[s.cfg.PayloadSourceField].(string)
		if content == "" {
			continue
		}
		passages = append(passages, Passage{
			Content:  content,
			SourceID: sourceID,
			Score:    hit.Score,
		})
	}

	s.logger.Debug("qdrant search completed",
		zap.Int("hits", len(passages)),
		zap.Int("limit", limit),
	)
	return passages, nil
}
