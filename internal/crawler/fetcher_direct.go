package crawler

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultUserAgents is the rotation pool for Direct mode. Pseudo-randomly
// picked per request so a run does not present one identity for thousands
// of fetches.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
}

// page is the raw outcome of one retrieval before classification.
type page struct {
	body       []byte
	finalURL   string
	statusCode int
}

// DirectConfig tunes the lightweight HTTP client.
type DirectConfig struct {
	Timeout    time.Duration // per-request, default 30s
	UserAgents []string      // rotation pool, defaults to DefaultUserAgents
	Headers    http.Header   // platform-level headers (Referer, Accept-Language)
}

// DirectClient issues single requests through a colly collector backed by a
// pooled transport. One client is shared by all jobs; colly's collector
// clone-per-fetch keeps callbacks isolated.
type DirectClient struct {
	base   *colly.Collector
	cfg    DirectConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDirectClient builds the Direct-mode client.
func NewDirectClient(cfg DirectConfig, logger *zap.Logger) *DirectClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	base := colly.NewCollector()
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)
	return &DirectClient{
		base:   base,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DirectClient) userAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.UserAgents[c.rng.Intn(len(c.cfg.UserAgents))]
}

// Get retrieves one URL. HTTP error statuses (403, 429, ...) come back as a
// page with that status, not as an error; only transport-level failures
// (timeout, DNS, refused connection) return an error.
func (c *DirectClient) Get(ctx context.Context, rawURL string, extra http.Header) (page, error) {
	collector := c.base.Clone()

	resultCh := make(chan directResult, 1)
	var once sync.Once
	send := func(res directResult) {
		once.Do(func() { resultCh <- res })
	}

	ua := c.userAgent()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", ua)
		for k, vals := range c.cfg.Headers {
			for _, v := range vals {
				r.Headers.Set(k, v)
			}
		}
		for k, vals := range extra {
			for _, v := range vals {
				r.Headers.Set(k, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		send(directResult{page: page{
			body:       append([]byte(nil), r.Body...),
			finalURL:   r.Request.URL.String(),
			statusCode: r.StatusCode,
		}})
	})
	collector.OnError(func(r *colly.Response, err error) {
		// A response with a real status is still a page; the detector
		// decides what a 403 means.
		if r != nil && r.StatusCode > 0 {
			send(directResult{page: page{
				body:       append([]byte(nil), r.Body...),
				finalURL:   r.Request.URL.String(),
				statusCode: r.StatusCode,
			}})
			return
		}
		if err == nil {
			err = errors.New("colly: request failed without response")
		}
		send(directResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return page{}, err
		}
		return res.page, res.err
	default:
		return page{}, errors.New("colly: fetch produced no result")
	}
}

type directResult struct {
	page page
	err  error
}
