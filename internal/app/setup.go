package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/lawontip/lawontip/db"
	"github.com/lawontip/lawontip/internal/config"
	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/observability"
	"github.com/lawontip/lawontip/internal/retrieval"
	"github.com/lawontip/lawontip/internal/session"
)

// Options tune Setup for the different surfaces.
type Options struct {
	// MemoryOnly skips conversation metadata persistence. Used by the
	// chat and ask surfaces, which own a single throwaway conversation.
	MemoryOnly bool
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger, opts Options) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so model
	// spans reach the exporter.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := retrieval.New(retrieval.NewPoolQuerier(pool), embedder, logger.With("component", "retrieval"))
	if err != nil {
		return nil, fmt.Errorf("creating retrieval store: %w", err)
	}
	a.Retrieval = store

	sessions, err := provideSessions(pool, cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions
	a.Accounts = session.NewAccountStore(pool)

	eng, err := provideEngine(a)
	if err != nil {
		return nil, err
	}
	a.Engine = eng

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing when enabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
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

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideSessions creates the conversation registry, with metadata
// persistence unless running memory-only.
func provideSessions(pool *pgxpool.Pool, cfg *config.Config, logger log.Logger, opts Options) (*session.Registry, error) {
	sessionLogger := logger.With("component", "session")

	var store *session.Store
	if !opts.MemoryOnly {
		var err error
		store, err = session.NewStore(session.NewPoolQuerier(pool), sessionLogger)
		if err != nil {
			return nil, fmt.Errorf("creating session store: %w", err)
		}
	}

	return session.NewRegistry(cfg.HistoryWindow, store, sessionLogger), nil
}

// provideEngine wires the turn orchestrator on top of the already
// constructed services.
func provideEngine(a *App) (*engine.Engine, error) {
	cfg := a.Config

	generator, err := engine.NewModelGenerator(engine.ModelGeneratorConfig{
		Genkit:      a.Genkit,
		ModelName:   cfg.FullModelName(),
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.GenerationTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model generator: %w", err)
	}

	var limiter *rate.Limiter
	if rpm := cfg.GenerationRequestsPerMin; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
	}

	eng, err := engine.New(engine.Config{
		Searcher:    a.Retrieval,
		Generator:   generator,
		Logger:      a.Logger.With("component", "engine"),
		TopK:        cfg.RetrievalTopK,
		Retry:       engine.RetryConfig{MaxRetries: cfg.GenerationMaxRetries},
		RateLimiter: limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return eng, nil
}
