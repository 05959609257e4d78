// Package cmd defines the fifadex command tree.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
)

const AppName = "fifadex"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - FIFA 21 player index with prefix, tag, rating and position queries",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("source", "", "override source.kind (csv, postgres)")

	rootCmd.AddCommand(DefineConsoleCommand())
	rootCmd.AddCommand(DefineServeCommand())
	rootCmd.AddCommand(DefineStatsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads --config and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if _, err := logger.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	if kind, _ := cmd.Flags().GetString("source"); kind != "" {
		cfg.Source.Kind = kind
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
