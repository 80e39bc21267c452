package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/logging"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/poster"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/sink"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/supervisor"
)

func newCrawlCmd() *cobra.Command {
	var (
		platforms  []string
		categories []string
		count      int
		maxPages   int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one or more platforms for movie records",
		Long: `Runs one crawl job per requested platform. Each job discovers detail
links from the platform's category listings, extracts and normalizes movie
records, and stops once the target count is reached or the listings run dry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, platforms, categories, count, maxPages)
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platforms", []string{"douban"}, "platform ids to crawl")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "categories to crawl (default: all per platform)")
	cmd.Flags().IntVar(&count, "count", 100, "target number of movies per platform")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap on listing pages per category (0 = no cap)")

	return cmd
}

func runCrawl(cmd *cobra.Command, platforms, categories []string, count, maxPages int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	snk, err := sink.New(cfg.Output.DataDir, logger)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	var posters *poster.Fetcher
	if cfg.Output.DownloadPosters {
		posters, err = poster.New(cfg.Output.PosterDir, logger)
		if err != nil {
			return fmt.Errorf("init poster fetcher: %w", err)
		}
	}

	reqs := make([]supervisor.JobRequest, 0, len(platforms))
	for _, p := range platforms {
		reqs = append(reqs, supervisor.JobRequest{
			Platform:    p,
			Categories:  categories,
			TargetCount: count,
			MaxPages:    maxPages,
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(cfg, snk, posters, logger)
	results, err := sup.Run(ctx, reqs)
	if err != nil {
		return err
	}

	for _, line := range supervisor.Summarize(results) {
		cmd.Println(line)
	}

	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("one or more crawl jobs failed")
		}
	}
	logger.Info("crawl finished", zap.Int("platforms", len(results)))
	return nil
}
