// Package cmd defines the seo-crawler command line: the long-running
// service and a one-shot crawl that prints its result.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/config"
	"github.com/JakeFAU/seo-crawler/internal/logging"
)

// cli carries what PersistentPreRunE loads for the subcommands.
type cli struct {
	cfgFile  string
	logLevel string
	cfg      config.Config
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	state := &cli{}
	cmd := &cobra.Command{
		Use:   "seo-crawler",
		Short: "Crawl websites and audit their on-page SEO.",
		Long: `seo-crawler walks a site breadth first within its scope, extracts
page metadata and computes an SEO audit per page. Run it as an HTTP service
with "serve" or crawl once from the terminal with "crawl".`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return state.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newServeCmd(state))
	cmd.AddCommand(newCrawlCmd(state))
	return cmd
}

func (c *cli) load() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
