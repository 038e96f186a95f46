package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validCfg returns a fully-valid Config for mutation testing.
func validCfg() *Config {
	return &Config{
		Store:  StoreConfig{Backend: BackendSQLite},
		SQLite: SQLiteConfig{Path: "/tmp/casegraph.db"},
		Pipeline: PipelineConfig{
			Concurrency:     4,
			ElementTimeout:  time.Minute,
			WriteTimeout:    time.Second,
			WriteRetries:    3,
			ReviewThreshold: 60,
			ContextRadius:   100,
			ChunkTokens:     1500,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory backend", func(c *Config) { c.Store.Backend = BackendMemory; c.SQLite.Path = "" }, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"sqlite without path", func(c *Config) { c.SQLite.Path = "" }, "sqlite.path"},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = BackendNeo4j }, "neo4j.uri"},
		{"unknown provider", func(c *Config) { c.Enrich.Provider = "bard" }, "enrich.provider"},
		{"negative rate", func(c *Config) { c.Enrich.RequestsPerSecond = -1 }, "requests_per_second"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"zero element timeout", func(c *Config) { c.Pipeline.ElementTimeout = 0 }, "element_timeout"},
		{"zero write timeout", func(c *Config) { c.Pipeline.WriteTimeout = 0 }, "write_timeout"},
		{"negative retries", func(c *Config) { c.Pipeline.WriteRetries = -1 }, "write_retries"},
		{"threshold above 100", func(c *Config) { c.Pipeline.ReviewThreshold = 101 }, "review_threshold"},
		{"negative radius", func(c *Config) { c.Pipeline.ContextRadius = -1 }, "context_radius"},
		{"zero chunk tokens", func(c *Config) { c.Pipeline.ChunkTokens = 0 }, "chunk_tokens"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCfg()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, ".casegraph", "casegraph.db"), cfg.SQLite.Path)
	assert.Equal(t, DefaultReviewThreshold, cfg.Pipeline.ReviewThreshold)
	assert.Equal(t, DefaultChunkTokens, cfg.Pipeline.ChunkTokens)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.ElementTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.EventWindow)
	assert.Equal(t, "", cfg.Enrich.Provider)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CASEGRAPH_STORE_BACKEND", "neo4j")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret-password")
	t.Setenv("CASEGRAPH_ENRICH_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-1234567890")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendNeo4j, cfg.Store.Backend)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret-password", cfg.Neo4j.Password)
	assert.Equal(t, "sk-ant-1234567890", cfg.Enrich.APIKey)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "casegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: memory
pipeline:
  concurrency: 8
  review_threshold: 75
  element_timeout: 5s
enrich:
  provider: openai
  api_key: sk-test-abcdefgh
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 75, cfg.Pipeline.ReviewThreshold)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.ElementTimeout)
	assert.Equal(t, "openai", cfg.Enrich.Provider)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSecretsMasked(t *testing.T) {
	e := EnrichConfig{Provider: "anthropic", APIKey: "sk-ant-abcdef123456"}
	s := e.String()
	assert.False(t, strings.Contains(s, "abcdef123456"))
	assert.Contains(t, s, "sk-a****3456")

	n := Neo4jConfig{URI: "bolt://x", Password: "short"}
	assert.Contains(t, n.String(), "Password:***")
}
