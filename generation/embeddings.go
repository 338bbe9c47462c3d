package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/types"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbeddingConfig configures the embeddings client.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// EmbeddingClient turns text into vectors via an OpenAI-compatible
// embeddings endpoint. It satisfies the retrieval.Embedder signature.
type EmbeddingClient struct {
	cfg    EmbeddingConfig
	client *http.Client
	logger *zap.Logger
}

// NewEmbeddingClient builds a client, filling unset config fields with
// defaults.
func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "embeddings")),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed returns the vector for a single piece of text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: []string{text}})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "marshal embedding request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build embedding request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCollaboratorTimeout, "embedding request timed out").WithCause(err)
		}
		return nil, types.NewError(types.ErrCollaborator, "embedding request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("embedding api error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return nil, types.NewError(types.ErrCollaborator,
			fmt.Sprintf("embedding api status=%d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.ErrCollaborator, "decode embedding response").WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrCollaborator, "embedding api: "+parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, types.NewError(types.ErrCollaborator, "embedding api returned no data")
	}
	return parsed.Data[0].Embedding, nil
}
