package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves one page in a specific mode. Implementations surface
// transport-level failures inside the FetchResult (verdict + Err), returning
// a Go error only for programmer mistakes such as an unparseable URL.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest, mode Mode) FetchResult
}

// Detector classifies a fetch result using status code, content length, and
// keyword signals. Pure; safe for concurrent use.
type Detector interface {
	Classify(statusCode int, body []byte) Verdict
}

// Limiter paces requests. Wait suspends the calling job before its next
// fetch; the delay scales with the mode controller's observed failure
// pressure.
type Limiter interface {
	Wait(ctx context.Context, state ModeSnapshot) error
}

// Clock abstracts time for the mode controller and rate limiter so cooldown
// behavior is testable without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
