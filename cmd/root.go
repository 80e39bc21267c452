// Package cmd defines the CLI commands for the moviecrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/config"

	// Register the built-in platform adapters.
	_ "github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site/douban"
	_ "github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site/imdb"
	_ "github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site/rotten"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moviecrawler",
		Short: "An adaptive movie metadata crawler",
		Long: `moviecrawler collects movie metadata from public listing sites.
It paces itself with jittered delays, detects anti-bot block pages, and
escalates from plain HTTP to a headless browser when a site pushes back.
Collected records are normalized and written as JSON and CSV files.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newPlatformsCmd())

	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
