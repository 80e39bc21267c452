// Package crawler implements the adaptive crawl pipeline: fetch-mode
// control, block detection, request pacing, and the two-phase batch
// orchestrator that drives a site adapter until its record quota is met.
package crawler

import (
	"net/http"
	"time"
)

// Verdict classifies a single fetch outcome.
type Verdict string

// Verdict values, produced by the Detector and the fetchers.
const (
	VerdictOK             Verdict = "ok"
	VerdictBlocked        Verdict = "blocked"
	VerdictEmpty          Verdict = "empty"
	VerdictTransportError Verdict = "transport_error"
)

// Mode is the fetch strategy for one request.
type Mode string

// Fetch modes. Direct is a plain pooled HTTP client; Rendered drives a
// headless browser session.
const (
	ModeDirect   Mode = "direct"
	ModeRendered Mode = "rendered"
)

// Purpose tags what a fetch is for. List and detail pages may start in
// different modes.
type Purpose string

// Fetch purposes.
const (
	PurposeList   Purpose = "list"
	PurposeDetail Purpose = "detail"
)

// FetchRequest captures everything needed to retrieve one page.
type FetchRequest struct {
	URL     string
	Purpose Purpose
	// ModeOverride forces a specific mode, bypassing the controller.
	// Empty means "ask the mode controller".
	ModeOverride Mode
	Headers      http.Header
}

// FetchResult is what every fetch returns. Transport failures surface as
// VerdictTransportError with Err set, never as a bare error return, so
// callers always have a result to classify.
type FetchResult struct {
	Body       []byte
	FinalURL   string
	StatusCode int
	Verdict    Verdict
	Mode       Mode
	Duration   time.Duration
	Err        error
}

// OK reports whether the fetch produced usable content.
func (r FetchResult) OK() bool { return r.Verdict == VerdictOK }

// Job specifies one crawl run against one platform. A Job is owned by
// exactly one orchestrator; its seen-set and collected records are mutated
// only from that orchestrator's sequential control flow.
type Job struct {
	ID          string
	Platform    string
	Categories  []string
	TargetCount int
	MaxPages    int
}

// JobCounters tracks per-job progress for logging and the final result.
type JobCounters struct {
	ListPages    int
	DetailPages  int
	Discovered   int
	Collected    int
	SoftFailures int
	Retries      int
	Escalations  int
}
