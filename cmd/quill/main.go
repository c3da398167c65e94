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

	"github.com/MikeSquared-Agency/quill/internal/api"
	"github.com/MikeSquared-Agency/quill/internal/config"
	"github.com/MikeSquared-Agency/quill/internal/guard"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/processor"
	"github.com/MikeSquared-Agency/quill/internal/slack"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/store/memory"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("quill starting", "port", cfg.Port, "store", cfg.StoreDriver, "llm", cfg.LLMProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var repo store.Repository
	switch cfg.StoreDriver {
	case "memory":
		repo = memory.New()
		slog.Warn("using in-memory store, data is lost on restart")
	default:
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required")
			os.Exit(1)
		}
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		repo = db
		slog.Info("database connected")
	}

	// Completion provider
	provider, err := llm.New(ctx, llm.Config{
		Provider:        cfg.LLMProvider,
		Fallback:        cfg.LLMFallbackProvider,
		Model:           cfg.Model,
		MaxTokens:       cfg.LLMMaxTokens,
		Timeout:         cfg.LLMTimeout,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicURL:    cfg.AnthropicURL,
		AWSRegion:       cfg.AWSRegion,
		BedrockModelID:  cfg.BedrockModelID,
	})
	if err != nil {
		slog.Error("failed to configure llm provider", "error", err)
		os.Exit(1)
	}
	slog.Info("llm provider ready", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider, "model", cfg.Model)

	// Feedback lock (Redis when shared across replicas)
	var locker guard.Locker = guard.NewLocal()
	if cfg.RedisURL != "" {
		rdb, err := guard.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = guard.NewRedis(rdb, 0, slog.Default())
		slog.Info("redis lock ready")
	}

	deps := processor.Deps{
		Repo:        repo,
		LLM:         provider,
		Locker:      locker,
		PerCategory: cfg.SyntheticPerCategory,
		Workers:     cfg.GenerationWorkers,
	}

	// NATS/Hermes (optional, events are only published when configured)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		deps.Publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Slack poster (optional, quill works without Slack)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without review loop")
	}

	proc := processor.New(deps, slog.Default())

	// Slack reactions arrive over NATS
	if hermesClient != nil && deps.Notifier != nil {
		if err := hermesClient.Subscribe(hermes.SubjectSlackReaction, proc.HandleReaction); err != nil {
			slog.Error("failed to subscribe to slack reactions", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, proc, api.Options{
		APIToken:    cfg.APIToken,
		CORSOrigins: cfg.CORSOrigins,
	}, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.quill.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("quill ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("quill stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
