package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Log:        DefaultLogConfig(),
		Engine:     DefaultEngineConfig(),
		Retrieval:  DefaultRetrievalConfig(),
		WebSearch:  DefaultWebSearchConfig(),
		Generation: DefaultGenerationConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MetricsAddr:     ":9090",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultEngineConfig returns the default orchestrator configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConcurrentBranches: false,
	}
}

// DefaultRetrievalConfig returns the default retrieval configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Backend:    "memory",
		Host:       "localhost",
		Port:       6333,
		Collection: "documents",
		Timeout:    10 * time.Second,
	}
}

// DefaultWebSearchConfig returns the default web search configuration.
func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{
		Provider: "disabled",
	}
}

// DefaultGenerationConfig returns the default generation configuration.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		BaseURL:        "https://api.openai.com/v1",
		Timeout:        60 * time.Second,
		EmbeddingModel: "text-embedding-3-small",
	}
}

// DefaultRedisConfig returns the default cache configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default history store configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		DSN: "genflow.db",
	}
}
