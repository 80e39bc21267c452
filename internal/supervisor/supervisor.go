// Package supervisor runs one crawl job per platform and aggregates their
// results. Jobs are isolated: a fatal error in one platform's adapter or
// fetch pipeline ends only that job, and the survivors keep crawling.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/config"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/crawler"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/normalize"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/poster"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/sink"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

// persistTimeout bounds the poster and file writes that run after a job
// ends. It is deliberately separate from the job budget.
const persistTimeout = 2 * time.Minute

// JobRequest names one platform crawl.
type JobRequest struct {
	Platform    string
	Categories  []string // empty means every category the adapter knows
	TargetCount int
	MaxPages    int
}

// Supervisor owns the shared collaborators and fans jobs out.
type Supervisor struct {
	cfg        config.Config
	sink       *sink.FileSink
	posters    *poster.Fetcher // nil when poster downloads are off
	normalizer *normalize.Normalizer
	logger     *zap.Logger

	// One direct client and detector serve all jobs; rendered browsers
	// are per job.
	direct   *crawler.DirectClient
	detector crawler.Detector

	// runJob executes one platform crawl under its job context. Tests
	// swap it out to exercise Run's scheduling and persistence without a
	// network or a browser.
	runJob func(ctx context.Context, job crawler.Job, adapter site.Adapter) movie.CrawlResult
}

// New builds a Supervisor. posters may be nil.
func New(cfg config.Config, snk *sink.FileSink, posters *poster.Fetcher, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		cfg:        cfg,
		sink:       snk,
		posters:    posters,
		normalizer: normalize.New(cfg.NormalizerConfig()),
		logger:     logger,
		direct:     crawler.NewDirectClient(cfg.DirectConfig(), logger),
		detector: crawler.NewHeuristicDetector(
			cfg.Detector.BlockedStatuses,
			cfg.Detector.MinContentBytes,
			cfg.Detector.BlockKeywords,
		),
	}
	s.runJob = s.crawlJob
	return s
}

// Run executes every request concurrently, bounded by
// supervisor.max_parallel_jobs, and returns the per-platform results keyed
// by platform id. The returned error reports request-level mistakes such as
// an unknown platform; crawl failures live inside each CrawlResult.
func (s *Supervisor) Run(ctx context.Context, reqs []JobRequest) (map[string]movie.CrawlResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no jobs requested")
	}

	jobs := make([]crawler.Job, 0, len(reqs))
	adapters := make(map[string]site.Adapter, len(reqs))
	for _, req := range reqs {
		adapter, err := site.Lookup(req.Platform)
		if err != nil {
			return nil, err
		}
		cats := req.Categories
		if len(cats) == 0 {
			cats = adapter.Categories()
		}
		adapters[req.Platform] = adapter
		jobs = append(jobs, crawler.Job{
			ID:          uuid.NewString(),
			Platform:    req.Platform,
			Categories:  cats,
			TargetCount: req.TargetCount,
			MaxPages:    req.MaxPages,
		})
	}

	var (
		mu      sync.Mutex
		results = make(map[string]movie.CrawlResult, len(jobs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Supervisor.MaxParallelJobs)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			jobCtx, cancel := context.WithTimeout(gctx, s.cfg.JobTimeout())
			result := s.runJob(jobCtx, job, adapters[job.Platform])
			cancel()

			// A timed out or canceled job still delivers what it
			// collected, so persistence runs on its own context
			// rather than the expired job context.
			s.deliver(context.WithoutCancel(gctx), job, &result)

			mu.Lock()
			results[job.Platform] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// crawlJob builds the per-job pipeline and runs it. The rendered browser
// session is per job and torn down with the orchestrator.
func (s *Supervisor) crawlJob(ctx context.Context, job crawler.Job, adapter site.Adapter) movie.CrawlResult {
	logger := s.logger.With(zap.String("platform", job.Platform), zap.String("job_id", job.ID))

	rendered := crawler.NewRenderClient(s.cfg.RenderConfig(), logger)
	fetcher := crawler.NewAdaptiveFetcher(s.direct, rendered, s.detector, logger)
	clock := crawler.SystemClock{}
	modes := crawler.NewModeController(s.cfg.ModeConfig(adapter.PreferRendered()), clock)
	limiter := crawler.NewJitterLimiter(s.cfg.LimiterConfig(), clock)

	orch := crawler.NewOrchestrator(job, adapter, fetcher, modes, limiter, s.normalizer, s.cfg.OrchestratorConfig(), logger)
	orch.OnFinish(rendered.Close)

	return orch.Run(ctx)
}

// deliver back-fills posters and persists a finished job's result.
func (s *Supervisor) deliver(ctx context.Context, job crawler.Job, result *movie.CrawlResult) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	logger := s.logger.With(zap.String("platform", job.Platform), zap.String("job_id", job.ID))

	if s.posters != nil {
		s.fetchPosters(ctx, result)
	}
	if s.sink != nil {
		saved, err := s.sink.Save(ctx, *result)
		if err != nil {
			logger.Error("persist results", zap.Error(err))
		} else {
			logger.Info("results saved",
				zap.String("json", saved.JSON),
				zap.String("csv", saved.CSV))
		}
	}
}

func (s *Supervisor) fetchPosters(ctx context.Context, result *movie.CrawlResult) {
	for i := range result.Records {
		rec := &result.Records[i]
		if rec.PosterURL == "" {
			continue
		}
		path, err := s.posters.Fetch(ctx, rec.PosterURL, rec.Platform, rec.SourceID)
		if err != nil {
			s.logger.Debug("poster fetch failed",
				zap.String("source_id", rec.SourceID), zap.Error(err))
			continue
		}
		rec.PosterPath = path
	}
}

// Summarize renders a stable one-line-per-platform report for CLI output.
func Summarize(results map[string]movie.CrawlResult) []string {
	platforms := make([]string, 0, len(results))
	for p := range results {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	lines := make([]string, 0, len(platforms))
	for _, p := range platforms {
		r := results[p]
		status := "ok"
		if !r.Success {
			status = "failed"
			if r.ErrorText != "" {
				status = "failed: " + r.ErrorText
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %d records, %d soft failures, %s",
			p, len(r.Records), r.SoftFailures, status))
	}
	return lines
}
