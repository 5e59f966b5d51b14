// Package app provides application initialization and dependency wiring.
//
// App is the container that owns the database pool, the stores, and the
// upstream model client. Setup builds everything from configuration;
// Close releases it in reverse order.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/conversation"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/log"
	"github.com/quillchat/quill/internal/postgres"
	"github.com/quillchat/quill/internal/project"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool          *pgxpool.Pool
	LLM           *llm.Client
	Verifier      *auth.Verifier
	Projects      *project.Store
	Conversations *conversation.Store
	Documents     *document.Store
	Knowledge     *knowledge.Store
}

// Setup creates and initializes the application. Call Close to release
// the resources it acquires.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	pool, err := postgres.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	embedder, err := knowledge.NewGeminiEmbedder(ctx, cfg.UpstreamAPIKey, cfg.EmbedderModel)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	queries := postgres.NewQueries(pool)

	a := &App{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		LLM: llm.NewClient(llm.Config{
			BaseURL:     cfg.UpstreamBaseURL,
			APIKey:      cfg.UpstreamAPIKey,
			Model:       cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}),
		Verifier:      auth.NewVerifier([]byte(cfg.JWTSecret)),
		Projects:      project.New(queries, logger),
		Conversations: conversation.New(queries, conversation.NewPoolBeginner(pool), logger),
		Documents:     document.New(queries, logger),
		Knowledge:     knowledge.New(queries, embedder, logger),
	}
	return a, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
