// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the note pipeline: Genkit and the
// embedding provider, the database pool, the chunk store and the
// retrieval service. Setup builds everything in dependency order and
// Close releases it in reverse.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embed"
	"github.com/recallhq/recall/internal/knowledge"
	"github.com/recallhq/recall/internal/log"
	"github.com/recallhq/recall/internal/rag"
)

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config

	// Core services
	Genkit    *genkit.Genkit
	Embedder  embed.Embedder
	DBPool    *pgxpool.Pool
	Store     *knowledge.Store
	Retriever *rag.Retriever
	Service   *rag.Service

	logger log.Logger

	// Teardown hooks in setup order; Close runs them in reverse.
	cleanups []func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil

	return nil
}
