package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

// Normalizer converts a raw field map into a validated record. A rejection
// is an error; the orchestrator counts it and moves on.
type Normalizer interface {
	Normalize(platform string, raw movie.RawFields) (movie.Record, error)
}

// OrchestratorConfig tunes the batch loop.
type OrchestratorConfig struct {
	// BatchSize caps how many new links one discovery phase collects.
	// The effective batch target is min(BatchSize, 2*remaining quota).
	BatchSize int
	// MaxLinkRetries bounds transient retries per individual link before
	// the link is abandoned for this run.
	MaxLinkRetries int
	// MaxEmptyListPages is the consecutive empty-list-page streak after
	// which a category's remaining pages are skipped.
	MaxEmptyListPages int
	// InterBatchDelayMin/Max bound the fixed cooldown between batches,
	// independent of the per-request rate limiter.
	InterBatchDelayMin time.Duration
	InterBatchDelayMax time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxLinkRetries <= 0 {
		c.MaxLinkRetries = 2
	}
	if c.MaxEmptyListPages <= 0 {
		c.MaxEmptyListPages = 3
	}
	if c.InterBatchDelayMin <= 0 {
		c.InterBatchDelayMin = 5 * time.Second
	}
	if c.InterBatchDelayMax < c.InterBatchDelayMin {
		c.InterBatchDelayMax = c.InterBatchDelayMin + 5*time.Second
	}
}

// Orchestrator drives one crawl job through alternating discovery and
// extraction batches until the record quota is met or no new links can be
// found. It owns the job's seen-set, mode state, and (via teardown hooks)
// the rendered browser session; everything it mutates is touched only from
// Run's sequential control flow, so it needs no locking.
type Orchestrator struct {
	job        Job
	adapter    site.Adapter
	fetcher    Fetcher
	modes      *ModeController
	limiter    Limiter
	normalizer Normalizer
	cfg        OrchestratorConfig
	logger     *zap.Logger
	rng        *rand.Rand
	teardowns  []func()

	seen      map[string]struct{}
	collected map[string]struct{}
	counters  JobCounters
}

// NewOrchestrator assembles an orchestrator for one job.
func NewOrchestrator(
	job Job,
	adapter site.Adapter,
	fetcher Fetcher,
	modes *ModeController,
	limiter Limiter,
	normalizer Normalizer,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		job:        job,
		adapter:    adapter,
		fetcher:    fetcher,
		modes:      modes,
		limiter:    limiter,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     logger.With(zap.String("job_id", job.ID), zap.String("platform", job.Platform)),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:       make(map[string]struct{}),
		collected:  make(map[string]struct{}),
	}
}

// OnFinish registers a teardown hook that runs when Run exits, whether the
// job completed, terminated early, or was canceled. The rendered browser
// session registers its Close here.
func (o *Orchestrator) OnFinish(fn func()) {
	if fn != nil {
		o.teardowns = append(o.teardowns, fn)
	}
}

// Run executes the job and always returns a result: partial data plus
// counters, never a panic or a bare error.
func (o *Orchestrator) Run(ctx context.Context) movie.CrawlResult {
	defer func() {
		for i := len(o.teardowns) - 1; i >= 0; i-- {
			o.teardowns[i]()
		}
	}()

	o.logger.Info("crawl job starting",
		zap.Strings("categories", o.job.Categories),
		zap.Int("target", o.job.TargetCount))

	records := make([]movie.Record, 0, o.job.TargetCount)
	cursors := o.newCursors()
	var fatalErr error

	for len(records) < o.job.TargetCount {
		if err := ctx.Err(); err != nil {
			fatalErr = err
			break
		}

		remaining := o.job.TargetCount - len(records)
		newLinks, err := o.discoverBatch(ctx, remaining, cursors)
		if err != nil {
			fatalErr = err
			break
		}
		if len(newLinks) == 0 {
			o.logger.Info("no new links discovered, finishing early",
				zap.Int("collected", len(records)))
			break
		}

		batch := o.extractBatch(ctx, newLinks, remaining)
		records = append(records, batch...)
		o.counters.Collected = len(records)
		o.logger.Info("batch complete",
			zap.Int("batch_records", len(batch)),
			zap.Int("collected", len(records)),
			zap.Int("target", o.job.TargetCount))

		if len(records) >= o.job.TargetCount || ctx.Err() != nil {
			break
		}
		if err := o.interBatchCooldown(ctx); err != nil {
			fatalErr = err
			break
		}
	}

	result := movie.CrawlResult{
		Platform:        o.job.Platform,
		Records:         records,
		DiscoveredLinks: o.counters.Discovered,
		SoftFailures:    o.counters.SoftFailures,
		Success:         fatalErr == nil,
	}
	if fatalErr != nil {
		result.ErrorText = fatalErr.Error()
	}
	o.logger.Info("crawl job finished",
		zap.Int("records", len(result.Records)),
		zap.Int("discovered", result.DiscoveredLinks),
		zap.Int("soft_failures", result.SoftFailures),
		zap.Bool("success", result.Success))
	return result
}

// categoryCursor tracks per-category progress across discovery batches.
type categoryCursor struct {
	category    string
	page        int
	emptyStreak int
	exhausted   bool
}

func (o *Orchestrator) newCursors() []*categoryCursor {
	cursors := make([]*categoryCursor, 0, len(o.job.Categories))
	for _, c := range o.job.Categories {
		cursors = append(cursors, &categoryCursor{category: c})
	}
	return cursors
}

// discoverBatch walks category list pages until it has gathered the batch
// target of unseen detail links. Links are deduplicated against the job's
// seen-set exactly once, across categories. A nil slice with nil error
// means every category is exhausted.
func (o *Orchestrator) discoverBatch(ctx context.Context, remaining int, cursors []*categoryCursor) ([]string, error) {
	target := min(o.cfg.BatchSize, 2*remaining)
	var newLinks []string

	for _, cur := range cursors {
		if cur.exhausted {
			continue
		}
		for o.pageInBudget(cur.page) && len(newLinks) < target {
			if err := ctx.Err(); err != nil {
				return newLinks, err
			}
			listURL, err := o.adapter.ListURL(cur.category, cur.page)
			if err != nil {
				if errors.Is(err, site.ErrNoMorePages) {
					cur.exhausted = true
					o.logger.Debug("category out of pages",
						zap.String("category", cur.category),
						zap.Int("page", cur.page))
					break
				}
				if errors.Is(err, site.ErrUnknownCategory) {
					return nil, fmt.Errorf("category %q: %w", cur.category, err)
				}
				return nil, fmt.Errorf("build list url for %q page %d: %w", cur.category, cur.page, err)
			}
			cur.page++

			res := o.fetchWithRetry(ctx, FetchRequest{URL: listURL, Purpose: PurposeList})
			o.counters.ListPages++
			if !res.OK() {
				cur.emptyStreak++
				o.logger.Warn("list page unusable",
					zap.String("url", listURL),
					zap.String("verdict", string(res.Verdict)),
					zap.Int("empty_streak", cur.emptyStreak))
				if cur.emptyStreak >= o.cfg.MaxEmptyListPages {
					cur.exhausted = true
					o.logger.Warn("skipping remaining pages of category",
						zap.String("category", cur.category))
					break
				}
				continue
			}

			added := 0
			for _, link := range o.adapter.ExtractListLinks(res.FinalURL, res.Body) {
				canon, err := CanonicalURL(link)
				if err != nil {
					continue
				}
				if _, dup := o.seen[canon]; dup {
					continue
				}
				o.seen[canon] = struct{}{}
				newLinks = append(newLinks, canon)
				added++
			}
			o.counters.Discovered += added
			if added == 0 {
				cur.emptyStreak++
				if cur.emptyStreak >= o.cfg.MaxEmptyListPages {
					cur.exhausted = true
					o.logger.Warn("skipping remaining pages of category",
						zap.String("category", cur.category))
					break
				}
			} else {
				cur.emptyStreak = 0
			}
		}
		if !o.pageInBudget(cur.page) {
			cur.exhausted = true
		}
		if len(newLinks) >= target {
			break
		}
	}
	return newLinks, nil
}

// pageInBudget reports whether a zero-based page index is still crawlable.
// MaxPages <= 0 means no cap.
func (o *Orchestrator) pageInBudget(page int) bool {
	return o.job.MaxPages <= 0 || page < o.job.MaxPages
}

// extractBatch fetches each discovered detail page, normalizes it, and
// collects records up to the remaining quota. A page that fetches OK but
// will not extract or normalize is a soft failure: counted, never retried,
// because refetching will not change a site's HTML structure.
func (o *Orchestrator) extractBatch(ctx context.Context, links []string, remaining int) []movie.Record {
	var out []movie.Record
	for _, link := range links {
		if len(out) >= remaining || ctx.Err() != nil {
			break
		}

		res := o.fetchWithRetry(ctx, FetchRequest{URL: link, Purpose: PurposeDetail})
		o.counters.DetailPages++
		if !res.OK() {
			o.softFail(link, "fetch", string(res.Verdict))
			continue
		}

		raw, err := o.adapter.ExtractDetailFields(res.FinalURL, res.Body)
		if err != nil {
			o.softFail(link, "extract", err.Error())
			continue
		}
		rec, err := o.normalizer.Normalize(o.job.Platform, raw)
		if err != nil {
			o.softFail(link, "normalize", err.Error())
			continue
		}
		if _, dup := o.collected[rec.SourceID]; dup {
			continue
		}
		o.collected[rec.SourceID] = struct{}{}
		out = append(out, rec)
		recordsCollected.WithLabelValues(o.job.Platform).Inc()
		o.logger.Debug("record collected",
			zap.String("source_id", rec.SourceID),
			zap.String("title", rec.Title))
	}
	return out
}

// fetchWithRetry performs one paced fetch, feeding every verdict back into
// the mode controller, and retries within the link's transient budget. A
// retry after a block may run in Rendered mode if the controller escalated
// in between.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, req FetchRequest) FetchResult {
	var res FetchResult
	attempts := 1 + o.cfg.MaxLinkRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := o.limiter.Wait(ctx, o.modes.Snapshot()); err != nil {
			return FetchResult{Verdict: VerdictTransportError, Err: err, FinalURL: req.URL}
		}
		mode := o.modes.ModeFor(req.Purpose)
		res = o.fetcher.Fetch(ctx, req, mode)
		if escalated := o.modes.Observe(res.Verdict); escalated {
			o.counters.Escalations++
			escalationsTotal.Inc()
			o.logger.Info("escalated to rendered mode",
				zap.String("url", req.URL),
				zap.String("verdict", string(res.Verdict)))
		}
		if res.OK() || ctx.Err() != nil {
			return res
		}
		if attempt < attempts-1 {
			o.counters.Retries++
		}
	}
	return res
}

func (o *Orchestrator) softFail(link, stage, reason string) {
	o.counters.SoftFailures++
	softFailuresTotal.WithLabelValues(o.job.Platform).Inc()
	o.logger.Warn("link abandoned",
		zap.String("url", link),
		zap.String("stage", stage),
		zap.String("reason", reason))
}

func (o *Orchestrator) interBatchCooldown(ctx context.Context) error {
	span := o.cfg.InterBatchDelayMax - o.cfg.InterBatchDelayMin
	delay := o.cfg.InterBatchDelayMin
	if span > 0 {
		delay += time.Duration(o.rng.Int63n(int64(span)))
	}
	o.logger.Debug("inter-batch cooldown", zap.Duration("delay", delay))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
