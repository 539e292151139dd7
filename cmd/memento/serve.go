package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/agent"
	"github.com/mementolabs/memento/internal/agent/providers"
	"github.com/mementolabs/memento/internal/channels/telegram"
	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/media"
	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/tools/events"
	"github.com/mementolabs/memento/internal/tools/faq"
	"github.com/mementolabs/memento/internal/tools/memories"
)

// buildServeCmd creates the "serve" command that runs the bot.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Memento bot",
		Long: `Start the bot with the configured provider, storage, and Telegram channel.

The bot will:
1. Load configuration from the specified file
2. Open the SQLite database
3. Initialize the media store when configured
4. Register the agent tools
5. Poll Telegram for updates until SIGINT/SIGTERM`,
		Example: `  # Start with default config
  memento serve

  # Start with custom config
  memento serve --config /etc/memento/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "memento.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := buildLogger(cfg.Logging, debug)
	slog.SetDefault(logger)

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	var photoStore *media.S3Store
	if cfg.Media.Enabled {
		photoStore, err = media.NewS3Store(ctx, media.S3Config{
			Bucket:          cfg.Media.Bucket,
			Region:          cfg.Media.Region,
			Endpoint:        cfg.Media.Endpoint,
			Prefix:          cfg.Media.Prefix,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			UsePathStyle:    cfg.Media.UsePathStyle,
			PresignTTL:      cfg.Media.PresignTTL,
		})
		if err != nil {
			return fmt.Errorf("init media store: %w", err)
		}
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	registry := agent.NewRegistry()
	registry.Register(events.NewCreateTool(store))
	registry.Register(events.NewJoinTool(store))
	registry.Register(events.NewListTool(store))
	registry.Register(events.NewInviteLinkTool(store))
	registry.Register(events.NewJoinByInviteTool(store))
	registry.Register(events.NewSummarizeTool(store))
	registry.Register(memories.NewAddTool(store))
	registry.Register(memories.NewUpdateTool(store))
	registry.Register(faq.NewGetTool())
	// A typed nil pointer inside the interface would dodge the tool's
	// nil check, so only pass the presigner when it exists.
	if photoStore != nil {
		registry.Register(memories.NewListTool(store, photoStore))
	} else {
		registry.Register(memories.NewListTool(store, nil))
	}

	compactor := agent.NewCompactor(cfg.Context.MaxMessages, cfg.Context.EventKeywords)
	images := agent.NewImagePolicy(agent.ImageMode(cfg.Context.ImageMode))
	if cfg.Context.HybridImageLimit > 0 {
		images.HybridImageLimit = cfg.Context.HybridImageLimit
	}

	providerCfg := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	opts := agent.Options{
		MaxIterations: cfg.LLM.MaxIterations,
		MaxTokens:     cfg.LLM.MaxTokens,
		Model:         providerCfg.DefaultModel,
		Logger:        logger,
	}
	if photoStore != nil {
		opts.Presigner = photoStore
	}
	orchestrator := agent.NewOrchestrator(provider, registry, compactor, images, opts)

	var photos telegram.PhotoStore
	if photoStore != nil {
		photos = photoStore
	}
	adapter, err := telegram.NewAdapter(telegram.Config{
		Token:          cfg.Telegram.BotToken,
		BotUsername:    cfg.Telegram.BotUsername,
		HistoryLimit:   cfg.Telegram.HistoryLimit,
		RequestTimeout: cfg.Telegram.RequestTimeout,
		Logger:         logger,
	}, store, photos, orchestrator)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Start(ctx); err != nil {
		return err
	}
	logger.Info("memento started", "provider", provider.Name())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return adapter.Stop(shutdownCtx)
}

// buildProvider constructs the configured LLM provider.
func buildProvider(cfg config.LLMConfig) (agent.Provider, error) {
	providerCfg := cfg.Providers[cfg.DefaultProvider]

	switch cfg.DefaultProvider {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.DefaultProvider)
	}
}

// buildLogger builds the process logger from config.
func buildLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
