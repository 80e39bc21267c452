package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/normalize"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

// fakeAdapter serves scripted list pages and detail fields. List URLs encode
// category and page so ExtractListLinks can look the right page up.
type fakeAdapter struct {
	platform string
	lists    map[string][][]string
	details  map[string]movie.RawFields
	rendered bool

	// pageCaps marks categories with a hard last page; indexes past the
	// cap report site.ErrNoMorePages instead of a URL.
	pageCaps map[string]int
}

func (a *fakeAdapter) Platform() string     { return a.platform }
func (a *fakeAdapter) PreferRendered() bool { return a.rendered }

func (a *fakeAdapter) Categories() []string {
	out := make([]string, 0, len(a.lists))
	for c := range a.lists {
		out = append(out, c)
	}
	return out
}

func (a *fakeAdapter) ListURL(category string, page int) (string, error) {
	if _, ok := a.lists[category]; !ok {
		return "", site.ErrUnknownCategory
	}
	if limit, ok := a.pageCaps[category]; ok && page >= limit {
		return "", fmt.Errorf("%s page %d: %w", category, page, site.ErrNoMorePages)
	}
	return fmt.Sprintf("https://fake.test/list/%s?page=%d", category, page), nil
}

func (a *fakeAdapter) ExtractListLinks(baseURL string, _ []byte) []string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	category := u.Path[len("/list/"):]
	page, _ := strconv.Atoi(u.Query().Get("page"))
	pages := a.lists[category]
	if page >= len(pages) {
		return nil
	}
	return pages[page]
}

func (a *fakeAdapter) ExtractDetailFields(finalURL string, _ []byte) (movie.RawFields, error) {
	raw, ok := a.details[finalURL]
	if !ok {
		return nil, fmt.Errorf("no parseable fields at %s", finalURL)
	}
	return raw, nil
}

// scriptedFetcher returns a verdict per URL and mode, recording every call.
type scriptedFetcher struct {
	verdict func(rawURL string, mode Mode) Verdict
	calls   []Mode
}

func (f *scriptedFetcher) Fetch(_ context.Context, req FetchRequest, mode Mode) FetchResult {
	f.calls = append(f.calls, mode)
	v := VerdictOK
	if f.verdict != nil {
		v = f.verdict(req.URL, mode)
	}
	return FetchResult{
		Body:     []byte("body"),
		FinalURL: req.URL,
		Verdict:  v,
		Mode:     mode,
	}
}

// nopLimiter never delays; the batch loop's pacing is exercised elsewhere.
type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context, _ ModeSnapshot) error { return ctx.Err() }

func detailURL(i int) string {
	return fmt.Sprintf("https://fake.test/movie/%d", i)
}

func detailFields(i int) movie.RawFields {
	return movie.RawFields{
		movie.FieldSourceID: strconv.Itoa(i),
		movie.FieldTitle:    fmt.Sprintf("Movie %d", i),
		movie.FieldRating:   "8.5",
	}
}

func fastConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchSize:          10,
		MaxLinkRetries:     2,
		MaxEmptyListPages:  2,
		InterBatchDelayMin: time.Millisecond,
		InterBatchDelayMax: 2 * time.Millisecond,
	}
}

func newTestOrchestrator(job Job, adapter site.Adapter, fetcher Fetcher, cfg OrchestratorConfig) *Orchestrator {
	mc := NewModeController(ModeConfig{EscalationThreshold: 2}, newTestClock())
	return NewOrchestrator(job, adapter, fetcher, mc, nopLimiter{}, normalize.New(normalize.Config{}), cfg, nil)
}

func TestOrchestrator_Run_MeetsQuota(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {
				{detailURL(1), detailURL(2), detailURL(3), detailURL(1)}, // dup on page
				{detailURL(2), detailURL(4), detailURL(5)},               // dup across pages
				{detailURL(6), detailURL(7)},
			},
		},
		details: map[string]movie.RawFields{},
	}
	for i := 1; i <= 7; i++ {
		adapter.details[detailURL(i)] = detailFields(i)
	}

	fetcher := &scriptedFetcher{}
	job := Job{ID: "j1", Platform: "fake", Categories: []string{"hot"}, TargetCount: 5, MaxPages: 10}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 5)
	require.GreaterOrEqual(t, res.DiscoveredLinks, 5)
	require.Zero(t, res.SoftFailures)

	ids := make(map[string]struct{})
	for _, rec := range res.Records {
		require.Equal(t, "fake", rec.Platform)
		_, dup := ids[rec.SourceID]
		require.False(t, dup, "duplicate record %s", rec.SourceID)
		ids[rec.SourceID] = struct{}{}
	}
}

func TestOrchestrator_Run_FinishesEarlyWhenLinksRunOut(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {{detailURL(1), detailURL(2)}},
		},
		details: map[string]movie.RawFields{
			detailURL(1): detailFields(1),
			detailURL(2): detailFields(2),
		},
	}
	fetcher := &scriptedFetcher{}
	job := Job{ID: "j2", Platform: "fake", Categories: []string{"hot"}, TargetCount: 50, MaxPages: 3}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.True(t, res.Success, "running out of links is not a failure")
	require.Len(t, res.Records, 2)
}

func TestOrchestrator_Run_UnknownCategoryIsFatal(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: "fake", lists: map[string][][]string{}}
	fetcher := &scriptedFetcher{}
	job := Job{ID: "j3", Platform: "fake", Categories: []string{"nope"}, TargetCount: 5, MaxPages: 3}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.False(t, res.Success)
	require.Contains(t, res.ErrorText, "unknown category")
	require.Empty(t, res.Records)
}

func TestOrchestrator_Run_EscalatesAndRecoversWithinRetryBudget(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {{detailURL(1)}},
		},
		details: map[string]movie.RawFields{
			detailURL(1): detailFields(1),
		},
	}
	// Direct mode is always blocked; rendered succeeds. The first list
	// fetch burns two direct attempts, escalates, and the third attempt
	// lands in rendered mode inside the same retry budget.
	fetcher := &scriptedFetcher{
		verdict: func(_ string, mode Mode) Verdict {
			if mode == ModeDirect {
				return VerdictBlocked
			}
			return VerdictOK
		},
	}
	job := Job{ID: "j4", Platform: "fake", Categories: []string{"hot"}, TargetCount: 1, MaxPages: 3}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
	require.Equal(t, []Mode{ModeDirect, ModeDirect, ModeRendered, ModeRendered}, fetcher.calls)
}

func TestOrchestrator_Run_SoftFailuresAreCountedNotFatal(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {{detailURL(1), detailURL(2), detailURL(3)}},
		},
		details: map[string]movie.RawFields{
			detailURL(1): detailFields(1),
			// detailURL(2) has no fields: extraction soft failure.
			detailURL(3): {movie.FieldRating: "7.0"}, // no id, no title: rejected
		},
	}
	fetcher := &scriptedFetcher{}
	job := Job{ID: "j5", Platform: "fake", Categories: []string{"hot"}, TargetCount: 3, MaxPages: 2}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
	require.Equal(t, 2, res.SoftFailures)
}

func TestOrchestrator_Run_CanceledContext(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {{detailURL(1)}},
		},
		details: map[string]movie.RawFields{detailURL(1): detailFields(1)},
	}
	fetcher := &scriptedFetcher{}
	job := Job{ID: "j6", Platform: "fake", Categories: []string{"hot"}, TargetCount: 5, MaxPages: 3}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	teardownRan := false
	orch.OnFinish(func() { teardownRan = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := orch.Run(ctx)
	require.False(t, res.Success)
	require.NotEmpty(t, res.ErrorText)
	require.True(t, teardownRan, "teardown hooks must run on cancellation")
}

func TestOrchestrator_Run_SinglePageCategoryRetiresWithoutRefetch(t *testing.T) {
	t.Parallel()

	// The category has exactly one page. Exhaustion must come from the
	// adapter's page signal, not from paced refetches of the same page
	// grinding down the empty streak.
	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"top": {{detailURL(1)}},
		},
		details:  map[string]movie.RawFields{detailURL(1): detailFields(1)},
		pageCaps: map[string]int{"top": 1},
	}
	fetcher := &scriptedFetcher{}
	job := Job{ID: "j8", Platform: "fake", Categories: []string{"top"}, TargetCount: 5, MaxPages: 100}
	orch := newTestOrchestrator(job, adapter, fetcher, fastConfig())

	res := orch.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
	// One list fetch, one detail fetch, nothing spent on dead pages.
	require.Len(t, fetcher.calls, 2)
}

func TestOrchestrator_Run_EmptyStreakRetiresCategory(t *testing.T) {
	t.Parallel()

	// Every list page is blocked; after MaxEmptyListPages the category is
	// skipped and the job finishes with whatever it has.
	adapter := &fakeAdapter{
		platform: "fake",
		lists: map[string][][]string{
			"hot": {{detailURL(1)}, {detailURL(2)}, {detailURL(3)}},
		},
	}
	fetcher := &scriptedFetcher{
		verdict: func(rawURL string, _ Mode) Verdict {
			return VerdictBlocked
		},
	}
	mc := NewModeController(ModeConfig{EscalationThreshold: 100}, newTestClock())
	job := Job{ID: "j7", Platform: "fake", Categories: []string{"hot"}, TargetCount: 5, MaxPages: 100}
	orch := NewOrchestrator(job, adapter, fetcher, mc, nopLimiter{}, normalize.New(normalize.Config{}), fastConfig(), nil)

	res := orch.Run(context.Background())
	require.True(t, res.Success)
	require.Empty(t, res.Records)
}
