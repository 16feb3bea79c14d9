package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ynotnauk/go-convex/auth"
	"github.com/ynotnauk/go-convex/bot"
	_ "github.com/ynotnauk/go-convex/cmd/example/commands"
	"github.com/ynotnauk/go-convex/config"
	"github.com/ynotnauk/go-convex/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var envPath string
	command := &cobra.Command{
		Use:          "convex",
		Short:        "Run the Convex chat bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, envPath)
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", "convex.yaml", "path to the YAML configuration, created with defaults when missing")
	command.Flags().StringVar(&envPath, "env", ".env", "path to a .env file with CONVEX_* overrides")
	return command
}

func run(ctx context.Context, configPath string, envPath string) error {
	// Load configuration
	if err := config.LoadEnvFiles(envPath); err != nil {
		return err
	}
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Create logger
	logger, backlog, err := logging.New(logging.Options{
		File:          cfg.Log.File,
		FlushInterval: cfg.Log.FlushInterval,
		Level:         cfg.Log.Level,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	if created {
		logger.Info("Created default configuration", zap.String("path", configPath))
	}
	// Create auth provider
	authProvider, err := auth.NewStaticProvider(cfg.Identity.Nickname, cfg.Identity.Realname, cfg.Identity.Password)
	if err != nil {
		return err
	}
	// Create complete bot
	options := []bot.Option{bot.WithLogger(logger)}
	if backlog != nil {
		options = append(options, bot.WithBacklog(backlog))
	}
	convex, err := bot.New(cfg, authProvider, options...)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Start bot
	if err := convex.Start(ctx); err != nil {
		logger.Error("Bot stopped with error", zap.Error(err))
		return err
	}
	return nil
}
