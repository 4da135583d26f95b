// Package cmd holds the cobra commands of the indexer CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/logger"
)

func NewRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:   "indexer",
		Short: "Parallel BSBI block indexer",
		Long: `indexer cuts a document collection into blocks, builds one term-id-sorted
partial inverted index per block in parallel and signals the merge phase once
every block is on disk.

Example usage:
  indexer parse --collection ./corpus --output ./indexes
  indexer inspect ./indexes/block_0000`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")

	root.AddCommand(newParseCmd())
	root.AddCommand(newInspectCmd())
	return root
}

// Execute runs the root command until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}
