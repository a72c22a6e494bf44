// Package main is the entry point for the Zalo OA group bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/zalobot/internal/bot"
	"github.com/edgard/zalobot/internal/bot/handlers"
	"github.com/edgard/zalobot/internal/bot/tasks"
	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/dedup"
	"github.com/edgard/zalobot/internal/export"
	"github.com/edgard/zalobot/internal/gemini"
	"github.com/edgard/zalobot/internal/logger"
	"github.com/edgard/zalobot/internal/server"
	"github.com/edgard/zalobot/internal/zalo"
)

// Version is set at build time.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "zalobot",
		Short:         "Zalo OA group bot that records goods messages and answers questions about them",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "./config.yaml", "path to configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and scheduled tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			slog.SetDefault(logger.NewLogger(cfg.Log.Level, cfg.Log.JSON))

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			database.CloseDB(db)
			return nil
		},
	}
}

// run wires every component from the configuration and blocks until ctx is
// cancelled or a component fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON, "version", Version)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return err
	}

	refresher := zalo.NewOAuthRefresher(cfg.Zalo.AppID, cfg.Zalo.SecretKey, cfg.Zalo.OAuthURL, cfg.Zalo.RequestTimeout)
	tokens := zalo.NewTokenCache(cfg.Zalo.AccessToken, refresher, log)
	zaloClient := zalo.NewClient(cfg.Zalo.APIBaseURL, cfg.Zalo.RequestTimeout, tokens, zalo.Credentials{
		RefreshToken: cfg.Zalo.RefreshToken,
		AccessToken:  cfg.Zalo.AccessToken,
	}, log)

	deduper := dedup.New(cfg.Dedup.MaxAge, log)

	baseURL := cfg.Server.PublicURL
	if baseURL == "" {
		baseURL = export.BaseURLFromAddr(cfg.Server.Addr)
		log.Warn("server.public_url is not set, export links will use a local address", "base_url", baseURL)
	}
	exporter := export.New(cfg.Export.Dir, baseURL, cfg.Export.KeepFiles, log)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        store,
		GeminiClient: gemClient,
		Sender:       zaloClient,
		Exporter:     exporter,
		Dedup:        deduper,
	}
	dispatcher := handlers.NewDispatcher(hDeps, handlers.RegisterAllCommands(hDeps))

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Config:   cfg,
		Dedup:    deduper,
		Exporter: exporter,
		Tokens:   zaloClient,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}

	server.Version = Version
	srv := server.New(server.Deps{
		Logger:     log,
		Config:     cfg,
		Handlers:   hDeps,
		Dispatcher: dispatcher,
		Exports:    exporter,
		Groups:     zaloClient,
	})

	app := bot.NewBot(log, srv, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
