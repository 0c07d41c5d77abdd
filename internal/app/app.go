// Package app provides application initialization and dependency wiring.
//
// App is the container every surface (serve, chat, ask) builds on. Setup
// runs two phases: construct infrastructure (tracing, database, Genkit),
// then wire the domain components on top of it, cleaning up everything
// already initialized when a later phase fails.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawontip/lawontip/internal/config"
	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/retrieval"
	"github.com/lawontip/lawontip/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Domain components
	Retrieval *retrieval.Store
	Sessions  *session.Registry
	Accounts  *session.AccountStore
	Engine    *engine.Engine

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a
// partially constructed App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	// Flush pending spans last so teardown is traced too.
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
