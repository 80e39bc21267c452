package crawler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// directGetter and renderGetter are the narrow views AdaptiveFetcher needs
// from its two clients, kept as interfaces so tests can substitute fakes
// without a network or a browser.
type directGetter interface {
	Get(ctx context.Context, rawURL string, extra http.Header) (page, error)
}

type renderGetter interface {
	Get(ctx context.Context, rawURL string) (page, error)
}

// AdaptiveFetcher implements Fetcher over a Direct client and a Rendered
// client. Every retrieval is classified by the Detector before it is
// returned, and a failed render falls back to Direct once before giving up.
type AdaptiveFetcher struct {
	direct   directGetter
	rendered renderGetter
	detector Detector
	logger   *zap.Logger
}

// NewAdaptiveFetcher wires the two mode clients to a detector. rendered may
// be nil, in which case Rendered requests degrade to Direct.
func NewAdaptiveFetcher(direct directGetter, rendered renderGetter, detector Detector, logger *zap.Logger) *AdaptiveFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveFetcher{direct: direct, rendered: rendered, detector: detector, logger: logger}
}

// Fetch retrieves req.URL in the given mode. The returned FetchResult
// always carries a verdict; transport failures are VerdictTransportError
// with Err set rather than an error return.
func (f *AdaptiveFetcher) Fetch(ctx context.Context, req FetchRequest, mode Mode) FetchResult {
	if req.ModeOverride != "" {
		mode = req.ModeOverride
	}
	if mode == ModeRendered && f.rendered == nil {
		mode = ModeDirect
	}

	start := time.Now()
	fetchTotal.WithLabelValues(string(mode)).Inc()

	var (
		p   page
		err error
	)
	switch mode {
	case ModeRendered:
		p, err = f.rendered.Get(ctx, req.URL)
		if err != nil && ctx.Err() == nil {
			// One shot at the cheap path before reporting failure.
			f.logger.Warn("render failed, falling back to direct",
				zap.String("url", req.URL), zap.Error(err))
			renderFallbacks.Inc()
			p2, err2 := f.direct.Get(ctx, req.URL, req.Headers)
			if err2 == nil {
				p, err, mode = p2, nil, ModeDirect
			}
		}
	default:
		p, err = f.direct.Get(ctx, req.URL, req.Headers)
	}

	elapsed := time.Since(start)
	if err != nil {
		fetchErrors.WithLabelValues(string(mode)).Inc()
		return FetchResult{
			FinalURL: req.URL,
			Verdict:  VerdictTransportError,
			Mode:     mode,
			Duration: elapsed,
			Err:      err,
		}
	}

	verdict := f.detector.Classify(p.statusCode, p.body)
	if verdict == VerdictBlocked {
		blockedTotal.WithLabelValues(string(mode)).Inc()
	}
	return FetchResult{
		Body:       p.body,
		FinalURL:   p.finalURL,
		StatusCode: p.statusCode,
		Verdict:    verdict,
		Mode:       mode,
		Duration:   elapsed,
	}
}
