package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/logging"
)

var logLevel string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocalsilence",
		Short: "WhatsApp psychosocial questionnaire service",
		Long: `vocalsilence runs a psychosocial risk questionnaire over WhatsApp,
screening every message for crisis signals and handing participants to a
supportive crisis dialogue when needed.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newResetCmd(),
		newSeedCmd(),
	)
	return cmd
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
