// Shopmate - Conversational Shopping Assistant Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/shopmate-labs/shopmate/internal/api"
	"github.com/shopmate-labs/shopmate/internal/assistant"
	"github.com/shopmate-labs/shopmate/internal/catalog"
	"github.com/shopmate-labs/shopmate/internal/config"
	"github.com/shopmate-labs/shopmate/internal/middleware"
	"github.com/shopmate-labs/shopmate/internal/provider"
	"github.com/shopmate-labs/shopmate/internal/relevance"
	"github.com/shopmate-labs/shopmate/internal/store"
	"github.com/shopmate-labs/shopmate/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.AI.Provider, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalogs, err := catalog.Load(cfg.ProductsPath, cfg.KnowledgePath)
	if err != nil {
		slog.Error("Failed to load catalogs", "error", err)
		os.Exit(1)
	}

	llm, err := provider.New(provider.Config{
		Provider:         cfg.AI.Provider,
		Model:            cfg.AI.Model,
		OpenAIAPIKey:     cfg.AI.OpenAIAPIKey,
		OpenRouterAPIKey: cfg.AI.OpenRouterAPIKey,
		Timeout:          cfg.AI.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize language-model provider", "error", err)
		os.Exit(1)
	}
	{
		testCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if !llm.TestConnection(testCtx) {
			slog.Warn("Language-model provider unreachable at startup, chat will use fallback replies", "provider", llm.Name())
		} else {
			slog.Info("Language-model provider connected", "provider", llm.Name())
		}
		cancel()
	}

	translog, err := assistant.NewTranscriptLogger(assistant.TranscriptLogConfig{
		Enabled:       cfg.TranscriptLog.Enabled,
		Dir:           cfg.TranscriptLog.Dir,
		GlobalEnabled: cfg.TranscriptLog.GlobalEnabled,
		GlobalPath:    cfg.TranscriptLog.GlobalPath,
		QueueSize:     cfg.TranscriptLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := translog.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Initialize services.
	engine := relevance.NewEngine(catalogs.Products())
	assembler := assistant.NewAssembler(assistant.AssemblerConfig{
		TokenBudget:   cfg.Context.TokenBudget,
		HistoryTurns:  cfg.Context.HistoryTurns,
		KnowledgeTopK: cfg.Context.KnowledgeTopK,
	}, catalogs.Knowledge())

	svc := assistant.NewService(assistant.Config{
		ProviderTimeout: cfg.AI.Timeout,
		ProductTopK:     cfg.Context.ProductTopK,
		Assembler: assistant.AssemblerConfig{
			TokenBudget:   cfg.Context.TokenBudget,
			HistoryTurns:  cfg.Context.HistoryTurns,
			KnowledgeTopK: cfg.Context.KnowledgeTopK,
		},
	}, repo, llm, engine, assembler, translog)

	// Initialize handlers.
	chatHandler := api.NewChatHandler(svc, repo)
	orderHandler := api.NewOrderHandler(repo)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := api.NewWebSocketHandler(svc, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)
	orderHandler.RegisterRoutes(r)
	r.Get("/api/chat/ws", wsHandler.ServeHTTP)

	// Everything that is not an API route serves the embedded chat widget.
	r.NotFound(web.Handler().ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // chat turns wait on the language model; the per-call timeout bounds them
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
