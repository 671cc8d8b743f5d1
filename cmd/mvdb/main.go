package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mvdb/config"
	"mvdb/observability"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// loadConfig reads --config when given and applies --log-level on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	observability.SetLoggingLevel(level)
	return cfg, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:           "mvdb",
		Short:         "In-memory MVCC table engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")

	rootCmd.AddCommand(
		newBenchCommand(),
		newDemoCommand(),
		newReplCommand(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("mvdb: command failed")
		os.Exit(1)
	}
}
