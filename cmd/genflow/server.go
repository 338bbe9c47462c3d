package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/genflow-ai/genflow/api"
	"github.com/genflow-ai/genflow/api/handlers"
	"github.com/genflow-ai/genflow/config"
	"github.com/genflow-ai/genflow/generation"
	"github.com/genflow-ai/genflow/history"
	"github.com/genflow-ai/genflow/internal/cache"
	"github.com/genflow-ai/genflow/internal/metrics"
	"github.com/genflow-ai/genflow/internal/server"
	"github.com/genflow-ai/genflow/retrieval"
	"github.com/genflow-ai/genflow/websearch"
	"github.com/genflow-ai/genflow/workflow"
)

// Server assembles the engine's collaborators, the HTTP surface, and the
// metrics listener from configuration.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	db       *gorm.DB
	store    *history.Store
	cacheMgr *cache.Manager
	registry *prometheus.Registry
}

// NewServer creates a server from validated configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start wires all components and brings up the listeners.
func (s *Server) Start() error {
	// Each server owns its registry so metrics never collide across
	// restarts in the same process.
	s.registry = prometheus.NewRegistry()
	collector := metrics.NewCollector("genflow", s.registry, s.logger)

	s.openHistory()
	s.openCache()

	retriever := s.buildRetriever()
	searcher := s.buildSearcher()
	generator := generation.NewOpenAIClient(generation.OpenAIConfig{
		APIKey:            s.cfg.Generation.APIKey,
		BaseURL:           s.cfg.Generation.BaseURL,
		Timeout:           s.cfg.Generation.Timeout,
		RequestsPerSecond: s.cfg.Generation.RequestsPerSecond,
	}, s.logger)

	registry := workflow.NewRegistry(retriever, searcher, generator, s.logger)
	if kb, ok := registry[workflow.NodeKnowledgeBase].(*workflow.KnowledgeBaseExecutor); ok {
		kb.Timeout = s.cfg.Engine.RetrievalTimeout
	}
	if llm, ok := registry[workflow.NodeLLMEngine].(*workflow.LLMEngineExecutor); ok {
		llm.Timeout = s.cfg.Engine.GenerationTimeout
	}

	opts := []workflow.Option{
		workflow.WithLogger(s.logger),
		workflow.WithProgress(func(e workflow.Event) {
			if e.State == workflow.EventRunning {
				return
			}
			collector.RecordNode(string(e.NodeType), e.Duration)

			status := "success"
			if e.State == workflow.EventFailed {
				status = "error"
			}
			switch e.NodeType {
			case workflow.NodeKnowledgeBase:
				collector.RecordCollaborator("retrieval", status, e.Duration)
			case workflow.NodeLLMEngine:
				collector.RecordCollaborator("generation", status, e.Duration)
			}
		}),
	}
	if s.cfg.Engine.ConcurrentBranches {
		opts = append(opts, workflow.WithConcurrency())
	}
	orchestrator := workflow.NewOrchestrator(registry, opts...)

	var checks []handlers.HealthCheck
	if s.db != nil {
		checks = append(checks, &handlers.DatabaseHealthCheck{DB: s.db})
	}
	if s.cacheMgr != nil {
		checks = append(checks, cacheHealthCheck{mgr: s.cacheMgr})
	}

	router := api.NewRouter(api.RouterConfig{
		Runner:  orchestrator,
		Store:   s.store,
		Metrics: collector,
		Logger:  s.logger,
		Version: Version,
		Checks:  checks,
	})

	httpCfg := server.DefaultConfig()
	httpCfg.Addr = s.cfg.Server.Addr
	if s.cfg.Server.ReadTimeout > 0 {
		httpCfg.ReadTimeout = s.cfg.Server.ReadTimeout
	}
	if s.cfg.Server.WriteTimeout > 0 {
		httpCfg.WriteTimeout = s.cfg.Server.WriteTimeout
	}
	if s.cfg.Server.ShutdownTimeout > 0 {
		httpCfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	}

	s.httpManager = server.NewManager(router, httpCfg, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.Addr()))

	if s.cfg.Server.MetricsAddr != "" {
		metricsCfg := server.DefaultConfig()
		metricsCfg.Addr = s.cfg.Server.MetricsAddr
		s.metricsManager = server.NewManager(api.NewMetricsRouter(s.registry), metricsCfg, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		s.logger.Info("metrics server started", zap.String("addr", s.metricsManager.Addr()))
	}

	return nil
}

// WaitForShutdown blocks until a signal or serve error, then stops everything.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Stop()
}

// Stop shuts down the listeners and flushes pending history writes.
func (s *Server) Stop() {
	ctx := context.Background()
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.store != nil {
		s.store.Flush()
	}
	if s.cacheMgr != nil {
		if err := s.cacheMgr.Close(); err != nil {
			s.logger.Error("cache close error", zap.Error(err))
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// openHistory connects the execution history store. Failure is not fatal:
// the engine runs without history rather than refusing to start.
func (s *Server) openHistory() {
	db, err := history.Open(s.cfg.Database.DSN, s.logger)
	if err != nil {
		s.logger.Warn("history database unavailable, history disabled", zap.Error(err))
		return
	}
	store, err := history.NewStore(db, s.logger)
	if err != nil {
		s.logger.Warn("history migration failed, history disabled", zap.Error(err))
		return
	}
	s.db = db
	s.store = store
}

// openCache connects Redis when enabled. Failure degrades to no caching.
func (s *Server) openCache() {
	if !s.cfg.Redis.Enabled {
		return
	}
	mgr, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	}, s.logger)
	if err != nil {
		s.logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		return
	}
	s.cacheMgr = mgr
}

func (s *Server) buildRetriever() retrieval.Retriever {
	var retriever retrieval.Retriever
	switch s.cfg.Retrieval.Backend {
	case "qdrant":
		embedder := generation.NewEmbeddingClient(generation.EmbeddingConfig{
			APIKey:  s.cfg.Generation.APIKey,
			BaseURL: s.cfg.Generation.BaseURL,
			Model:   s.cfg.Generation.EmbeddingModel,
			Logger:  s.logger,
		})
		retriever = retrieval.NewQdrantStore(retrieval.QdrantConfig{
			Host:       s.cfg.Retrieval.Host,
			Port:       s.cfg.Retrieval.Port,
			APIKey:     s.cfg.Retrieval.APIKey,
			Collection: s.cfg.Retrieval.Collection,
			Timeout:    s.cfg.Retrieval.Timeout,
		}, embedder, s.logger)
	default:
		retriever = retrieval.NewMemoryStore(s.logger)
	}

	if s.cacheMgr != nil && s.cfg.Retrieval.CacheTTL > 0 {
		retriever = retrieval.NewCachedRetriever(retriever, s.cacheMgr, s.cfg.Retrieval.CacheTTL, s.logger)
	}
	return retriever
}

func (s *Server) buildSearcher() websearch.Searcher {
	var searcher websearch.Searcher
	switch s.cfg.WebSearch.Provider {
	case "serpapi":
		searcher = websearch.NewSerpAPIClient(websearch.SerpAPIConfig{
			APIKey: s.cfg.WebSearch.APIKey,
		}, s.logger)
	case "brave":
		searcher = websearch.NewBraveClient(websearch.BraveConfig{
			APIKey: s.cfg.WebSearch.APIKey,
		}, s.logger)
	default:
		return websearch.Disabled{}
	}

	if s.cacheMgr != nil && s.cfg.WebSearch.CacheTTL > 0 {
		searcher = websearch.NewCachedSearcher(searcher, s.cacheMgr, s.cfg.WebSearch.CacheTTL, s.logger)
	}
	return searcher
}

// cacheHealthCheck adapts the cache manager to the health probe interface.
type cacheHealthCheck struct {
	mgr *cache.Manager
}

func (c cacheHealthCheck) Name() string                    { return "redis" }
func (c cacheHealthCheck) Check(ctx context.Context) error { return c.mgr.Ping(ctx) }
