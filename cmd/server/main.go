package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/causalchat/server/internal/app"
	"github.com/causalchat/server/internal/config"
	"github.com/causalchat/server/internal/log"
)

func main() {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:   "causalchat-server",
		Short: "Runs the causal-delivery group chat hub over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath, logLevel)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config.yaml (created with defaults if missing)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(configPath, logLevel string) error {
	logger := log.New(logLevel)

	cfg, resolvedPath, err := config.Load(logger, configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger.Info().Str("path", resolvedPath).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting causalchat server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
	return nil
}
