package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RenderConfig tunes the headless-browser session.
type RenderConfig struct {
	Timeout   time.Duration // per-navigation, default 45s
	UserAgent string
	HostQPS   float64 // per-host request budget inside rendered mode
	// SettleDelay is an extra wait after body readiness for sites that
	// hydrate their listings client-side.
	SettleDelay time.Duration
}

// RenderClient drives a headless Chrome session via chromedp. The browser
// process starts lazily on the first Get and is reused for every rendered
// fetch of the owning job; Close tears it down. A RenderClient is owned by
// exactly one job and must not be shared.
type RenderClient struct {
	cfg    RenderConfig
	logger *zap.Logger

	mu              sync.Mutex
	started         bool
	startErr        error
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	hostLimiters sync.Map
}

// NewRenderClient builds the Rendered-mode client without starting a
// browser; the process launches on first use.
func NewRenderClient(cfg RenderConfig, logger *zap.Logger) *RenderClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgents[0]
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	return &RenderClient{cfg: cfg, logger: logger}
}

func (c *RenderClient) ensureStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return c.startErr
	}
	c.started = true

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1366,768"),
		chromedp.UserAgent(c.cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		c.startErr = fmt.Errorf("chromedp warmup: %w", err)
		return c.startErr
	}
	c.allocatorCancel = allocatorCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	if c.logger != nil {
		c.logger.Info("headless browser session started")
	}
	return nil
}

// Close tears down the browser session. Safe to call whether or not the
// session ever started, and more than once.
func (c *RenderClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
	}
	if c.allocatorCancel != nil {
		c.allocatorCancel()
		c.allocatorCancel = nil
	}
	c.started = false
	c.startErr = nil
}

// Get renders one URL in a fresh tab of the shared browser and returns the
// post-JavaScript DOM snapshot.
func (c *RenderClient) Get(ctx context.Context, rawURL string) (page, error) {
	if err := c.ensureStarted(); err != nil {
		return page{}, err
	}
	if err := c.waitHostBudget(ctx, rawURL); err != nil {
		return page{}, err
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelTask()
	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	meta := &renderMeta{}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
		})
	})

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(c.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return page{}, fmt.Errorf("chromedp run: %w", err)
	}

	status := meta.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	final := meta.url
	if final == "" {
		final = rawURL
	}
	return page{
		body:       []byte(html),
		finalURL:   final,
		statusCode: status,
	}, nil
}

func (c *RenderClient) waitHostBudget(ctx context.Context, rawURL string) error {
	if c.cfg.HostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := c.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(c.cfg.HostQPS), 1))
	limiter := val.(*rate.Limiter)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("render host budget: %w", err)
	}
	return nil
}

type renderMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

// forwardCancel propagates parent cancellation into a chromedp task context
// and returns a stopper for the bridging goroutine.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
