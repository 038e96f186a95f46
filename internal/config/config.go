package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultChunkTokens is the estimated token budget of one extraction chunk.
	DefaultChunkTokens = 1500

	// DefaultReviewThreshold is the confidence below which artifacts are queued for review.
	DefaultReviewThreshold = 60

	// DefaultConcurrency is the number of chunks extracted in parallel.
	DefaultConcurrency = 4
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config holds all configuration for casegraph.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
}

// StoreConfig selects the graph store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI         string        `mapstructure:"uri"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	MaxPoolSize int           `mapstructure:"max_pool_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// String returns a safe representation with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, User:%s, Password:%s, Database:%s}",
		c.URI, c.User, maskAPIKey(c.Password), c.Database)
}

// EnrichConfig holds the optional language-model enrichment settings.
type EnrichConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// String returns a safe representation of EnrichConfig with the API key masked.
func (c EnrichConfig) String() string {
	return fmt.Sprintf("EnrichConfig{Provider:%s, APIKey:%s, Model:%s}", c.Provider, maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// PipelineConfig tunes extraction concurrency, persistence and review.
type PipelineConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	ElementTimeout  time.Duration `mapstructure:"element_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	WriteRetries    int           `mapstructure:"write_retries"`
	WriteBackoff    time.Duration `mapstructure:"write_backoff"`
	ReviewThreshold int           `mapstructure:"review_threshold"`
	ContextRadius   int           `mapstructure:"context_radius"`
	ChunkTokens     int           `mapstructure:"chunk_tokens"`
	EventWindow     time.Duration `mapstructure:"event_window"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	return load(viper.New())
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".casegraph"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CASEGRAPH")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("neo4j.uri", "CASEGRAPH_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.user", "CASEGRAPH_NEO4J_USER", "NEO4J_USER")
	_ = v.BindEnv("neo4j.password", "CASEGRAPH_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("store.backend", "CASEGRAPH_STORE_BACKEND")
	_ = v.BindEnv("sqlite.path", "CASEGRAPH_SQLITE_PATH")
	_ = v.BindEnv("enrich.provider", "CASEGRAPH_ENRICH_PROVIDER")
	_ = v.BindEnv("api.listen_addr", "CASEGRAPH_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "CASEGRAPH_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// The provider key falls back to the provider's conventional variable.
	if cfg.Enrich.APIKey == "" {
		switch cfg.Enrich.Provider {
		case "anthropic":
			cfg.Enrich.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.Enrich.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("sqlite.path", filepath.Join(homeDir(), ".casegraph", "casegraph.db"))

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("neo4j.max_pool_size", 50)
	v.SetDefault("neo4j.timeout", 10*time.Second)

	v.SetDefault("enrich.provider", "")
	v.SetDefault("enrich.api_key", "")
	v.SetDefault("enrich.model", "")
	v.SetDefault("enrich.base_url", "")
	v.SetDefault("enrich.timeout", 60*time.Second)
	v.SetDefault("enrich.max_tokens", 4096)
	v.SetDefault("enrich.requests_per_second", 1.0)
	v.SetDefault("enrich.burst", 2)
	v.SetDefault("enrich.cache_ttl", time.Hour)

	v.SetDefault("pipeline.concurrency", DefaultConcurrency)
	v.SetDefault("pipeline.element_timeout", 90*time.Second)
	v.SetDefault("pipeline.write_timeout", 10*time.Second)
	v.SetDefault("pipeline.write_retries", 3)
	v.SetDefault("pipeline.write_backoff", 200*time.Millisecond)
	v.SetDefault("pipeline.review_threshold", DefaultReviewThreshold)
	v.SetDefault("pipeline.context_radius", 100)
	v.SetDefault("pipeline.chunk_tokens", DefaultChunkTokens)
	v.SetDefault("pipeline.event_window", 30*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path must not be empty")
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri must be set when store.backend is neo4j")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, sqlite, neo4j (got %q)", c.Store.Backend)
	}
	switch c.Enrich.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("enrich.provider must be empty, anthropic or openai (got %q)", c.Enrich.Provider)
	}
	if c.Enrich.RequestsPerSecond < 0 {
		return fmt.Errorf("enrich.requests_per_second must be >= 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be greater than 0")
	}
	if c.Pipeline.ElementTimeout <= 0 {
		return fmt.Errorf("pipeline.element_timeout must be greater than 0")
	}
	if c.Pipeline.WriteTimeout <= 0 {
		return fmt.Errorf("pipeline.write_timeout must be greater than 0")
	}
	if c.Pipeline.WriteRetries < 0 {
		return fmt.Errorf("pipeline.write_retries must be >= 0")
	}
	if c.Pipeline.ReviewThreshold < 0 || c.Pipeline.ReviewThreshold > 100 {
		return fmt.Errorf("pipeline.review_threshold must be between 0 and 100")
	}
	if c.Pipeline.ContextRadius < 0 {
		return fmt.Errorf("pipeline.context_radius must be >= 0")
	}
	if c.Pipeline.ChunkTokens <= 0 {
		return fmt.Errorf("pipeline.chunk_tokens must be greater than 0")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
