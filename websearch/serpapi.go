package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SerpAPIConfig configures the SerpAPI client.
type SerpAPIConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url"`
	Engine  string        `json:"engine,omitempty" yaml:"engine"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// SerpAPIClient implements Searcher against the SerpAPI Google engine.
type SerpAPIClient struct {
	cfg    SerpAPIConfig
	client *http.Client
	logger *zap.Logger
}

// NewSerpAPIClient creates a SerpAPI-backed Searcher.
func NewSerpAPIClient(cfg SerpAPIConfig, logger *zap.Logger) *SerpAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://serpapi.com/search"
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SerpAPIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "serpapi")),
	}
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search implements Searcher.
func (c *SerpAPIClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("engine", c.cfg.Engine)
	params.Set("num", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("serpapi search failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}

	results := make([]Result, 0, maxResults)
	for _, r := range parsed.OrganicResults {
		if len(results) >= maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}

	c.logger.Debug("serpapi search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}
