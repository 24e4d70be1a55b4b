package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation. API keys are read directly by the Genkit
	// plugins, so their presence is checked here rather than at first use.
	switch c.Provider {
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty when provider is %q",
				ErrInvalidOllamaHost, ProviderOllama)
		}
	case ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey, ProviderGoogleAI)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, ProviderOpenAI)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: %v",
			ErrInvalidProvider, c.Provider,
			[]string{ProviderOllama, ProviderGoogleAI, ProviderOpenAI})
	}

	// 2. Embedding validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbedTimeoutSeconds < 1 || c.EmbedTimeoutSeconds > 600 {
		return fmt.Errorf("%w: embed_timeout_seconds must be between 1 and 600, got %d",
			ErrInvalidEmbedTimeout, c.EmbedTimeoutSeconds)
	}

	// 3. Chunking validation. Overlap must leave room for forward progress.
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got overlap=%d size=%d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.IngestBatchSize < 1 || c.IngestBatchSize > 1000 {
		return fmt.Errorf("%w: ingest_batch_size must be between 1 and 1000, got %d",
			ErrInvalidBatchSize, c.IngestBatchSize)
	}

	// 4. Rerank validation (only when enabled)
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("%w: rerank.base_url is required when rerank.enabled is true",
			ErrInvalidRerank)
	}

	// 5. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using the default dev password, but don't block local development.
	if c.PostgresPassword == "recall_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; deprecated allow/prefer are excluded (MITM
	// vulnerable). Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
