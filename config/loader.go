// Package config provides unified configuration loading: defaults, then an
// optional YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("GENFLOW").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Engine     EngineConfig     `yaml:"engine" env:"ENGINE"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" env:"RETRIEVAL"`
	WebSearch  WebSearchConfig  `yaml:"web_search" env:"WEB_SEARCH"`
	Generation GenerationConfig `yaml:"generation" env:"GENERATION"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// MetricsAddr is the listener for the Prometheus endpoint. Empty
	// disables the metrics server.
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig holds the zap logger settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	// ConcurrentBranches runs independent sibling branches in parallel.
	ConcurrentBranches bool `yaml:"concurrent_branches" env:"CONCURRENT_BRANCHES"`
	// RetrievalTimeout bounds a single knowledge base attempt. Zero keeps
	// the engine default.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout" env:"RETRIEVAL_TIMEOUT"`
	// GenerationTimeout bounds the generation call. Zero keeps the engine
	// default.
	GenerationTimeout time.Duration `yaml:"generation_timeout" env:"GENERATION_TIMEOUT"`
}

// RetrievalConfig holds the vector store settings.
type RetrievalConfig struct {
	// Backend selects the retriever: qdrant or memory.
	Backend    string        `yaml:"backend" env:"BACKEND"`
	Host       string        `yaml:"host" env:"HOST"`
	Port       int           `yaml:"port" env:"PORT"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// CacheTTL enables Redis-backed result caching when positive.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// WebSearchConfig holds the web search settings.
type WebSearchConfig struct {
	// Provider selects the searcher: serpapi, brave or disabled.
	Provider string `yaml:"provider" env:"PROVIDER"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	// CacheTTL enables Redis-backed result caching when positive.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// GenerationConfig holds the LLM client settings.
type GenerationConfig struct {
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	EmbeddingModel    string        `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
}

// RedisConfig holds the cache settings.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig holds the execution history store settings.
type DatabaseConfig struct {
	// DSN is a postgres:// URL or a SQLite path; ":memory:" for ephemeral.
	DSN string `yaml:"dsn" env:"DSN"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the GENFLOW env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "GENFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file to read.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation step run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, YAML file, env vars.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads the configuration or panics. Intended for main().
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks value ranges that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	switch c.Retrieval.Backend {
	case "", "memory", "qdrant":
	default:
		errs = append(errs, fmt.Sprintf("unknown retrieval backend %q", c.Retrieval.Backend))
	}
	switch c.WebSearch.Provider {
	case "", "disabled", "serpapi", "brave":
	default:
		errs = append(errs, fmt.Sprintf("unknown web search provider %q", c.WebSearch.Provider))
	}
	if c.WebSearch.Provider == "serpapi" || c.WebSearch.Provider == "brave" {
		if c.WebSearch.APIKey == "" {
			errs = append(errs, "web search provider requires an api key")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
