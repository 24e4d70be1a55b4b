package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/recallhq/recall/db"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embed"
	"github.com/recallhq/recall/internal/knowledge"
	"github.com/recallhq/recall/internal/log"
	"github.com/recallhq/recall/internal/rag"
	"github.com/recallhq/recall/internal/sqlc"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.Tracing.Enabled {
		a.cleanups = append(a.cleanups, provideOtelShutdown(ctx, cfg, logger))
	}

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, dbCleanup)
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	aiEmbedder := provideAIEmbedder(g, cfg)
	if aiEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embed.NewGenkitEmbedder(
		aiEmbedder,
		cfg.EmbedderModel,
		time.Duration(cfg.EmbedTimeoutSeconds)*time.Second,
		logger,
	)

	a.Store = knowledge.New(sqlc.New(pool), logger)

	var reranker rag.Reranker
	if cfg.Rerank.Enabled {
		reranker = rag.NewHTTPReranker(cfg.Rerank.BaseURL, cfg.Rerank.Model, logger)
		logger.Info("reranking enabled",
			"base_url", cfg.Rerank.BaseURL, "model", cfg.Rerank.Model)
	}

	expander := rag.NewExpander(a.Store, logger)
	a.Retriever = rag.NewRetriever(a.Store, a.Embedder, reranker, expander, logger)
	a.Service = rag.NewService(a.Store, a.Embedder, a.Retriever, rag.ServiceConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.IngestBatchSize,
		Collection:   cfg.CollectionName,
	}, logger)

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization.
// Must be called before provideGenkit to ensure TracerProvider is ready.
//
// Traces are exported to a local collector via OTLP HTTP. The collector
// handles authentication, buffering, and forwarding to the backend.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing

	endpoint := tc.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup in Setup, before goroutines are spawned.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured embedding provider.
// Supports ollama (default), googleai, and openai providers.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit embedder registration (no auto-discovery)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"embedder", cfg.EmbedderModel, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "embedder", cfg.EmbedderModel)

	case config.ProviderGoogleAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "embedder", cfg.EmbedderModel)

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	return g, nil
}

// provideAIEmbedder looks up the embedder registered by the provider plugin.
// Each provider registers embedders differently:
//   - ollama: registered in provideGenkit, keyed by server address
//   - googleai: GoogleAIEmbedder(g, modelName)
//   - openai: auto-registered in Init(), looked up by model name
func provideAIEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	case config.ProviderGoogleAI:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	default:
		return nil
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}
