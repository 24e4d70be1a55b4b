// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.recall/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Embedding: provider selection, embedder model, per-call timeout
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingestion: chunk size/overlap, batch size
//   - Rerank: optional rerank server for retrieve-then-rerank search
//   - Tracing: optional OTLP trace export
//
// Security: sensitive data (passwords) are never logged; the config directory
// uses 0750 permissions.
//
// Error handling uses sentinel errors for errors.Is() checks, wrapped with
// context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidEmbedTimeout indicates the embedding timeout is out of range.
	ErrInvalidEmbedTimeout = errors.New("invalid embed timeout")

	// ErrInvalidChunking indicates the chunk size/overlap pair is invalid.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidBatchSize indicates the ingest batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid ingest batch size")

	// ErrInvalidRerank indicates the rerank configuration is incomplete.
	ErrInvalidRerank = errors.New("invalid rerank configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// DefaultOllamaEmbedderModel is the default Ollama embedder model.
// nomic-embed-text outputs 768 dimensions, matching the vector column in the
// chunks table schema.
const DefaultOllamaEmbedderModel = "nomic-embed-text"

// RerankConfig configures the optional rerank server used to rescore
// retrieval candidates. When disabled, search falls back to pure vector
// distance ordering.
type RerankConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" json:"model"`
}

// TracingConfig configures optional OTLP trace export.
// Tracing is off unless Enabled is set.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// Embedding provider configuration
	Provider            string `mapstructure:"provider" json:"provider"` // "ollama" (default), "googleai", "openai"
	EmbedderModel       string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedTimeoutSeconds int    `mapstructure:"embed_timeout_seconds" json:"embed_timeout_seconds"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Chunking and ingestion configuration
	ChunkSize       int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	IngestBatchSize int `mapstructure:"ingest_batch_size" json:"ingest_batch_size"`

	// Collection identifies this note store in stats output.
	CollectionName string `mapstructure:"collection_name" json:"collection_name"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode only)
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`

	// Rerank configuration
	Rerank RerankConfig `mapstructure:"rerank" json:"rerank"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Configuration directory: ~/.recall/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".recall")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail-fast: a bad config should never reach the composition root.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Embedding defaults
	viper.SetDefault("provider", ProviderOllama)
	viper.SetDefault("embedder_model", DefaultOllamaEmbedderModel)
	viper.SetDefault("embed_timeout_seconds", 30)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Chunking defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)
	viper.SetDefault("ingest_batch_size", 50)

	viper.SetDefault("collection_name", "notes")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "recall")
	viper.SetDefault("postgres_password", "recall_dev_password")
	viper.SetDefault("postgres_db_name", "recall")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("serve_addr", ":8080")

	// Rerank defaults (off; needs a local rerank server)
	viper.SetDefault("rerank.enabled", false)
	viper.SetDefault("rerank.base_url", "http://localhost:8787")
	viper.SetDefault("rerank.model", "ms-marco-MiniLM-L-12-v2")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "recall")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// API keys are not bound here: GEMINI_API_KEY and OPENAI_API_KEY are read
// directly by the Genkit plugins; Validate checks their presence based on the
// selected provider.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RECALL_PROVIDER")
	mustBind("embedder_model", "RECALL_EMBEDDER_MODEL")
	mustBind("ollama_host", "RECALL_OLLAMA_HOST")
	mustBind("serve_addr", "RECALL_SERVE_ADDR")
	mustBind("collection_name", "RECALL_COLLECTION_NAME")
	mustBind("rerank.enabled", "RECALL_RERANK_ENABLED")
	mustBind("rerank.base_url", "RECALL_RERANK_BASE_URL")
	mustBind("tracing.enabled", "RECALL_TRACING_ENABLED")
	mustBind("tracing.endpoint", "RECALL_TRACING_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full blocks U+2588) to avoid substring matching with
// passwords that contain "*" or letters from "[REDACTED]".
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked to prevent substring
// matching; longer secrets keep the first and last 2 characters for debug
// utility. This defends against accidental logging of real secrets, not
// against adversarially-crafted inputs.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullEmbedderName returns the provider-qualified embedder name for Genkit.
// Examples: "ollama/nomic-embed-text", "googleai/text-embedding-004",
// "openai/text-embedding-3-small". A model name already containing "/" is
// returned as-is.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	return c.Provider + "/" + c.EmbedderModel
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
