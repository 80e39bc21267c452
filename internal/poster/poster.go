// Package poster downloads movie poster images as a post-collection side
// effect. It is an idempotent key-value fetch: one image per platform and
// source id, re-downloads short-circuited by the existing file.
package poster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultMaxBytes = 5 << 20

// Fetcher retrieves poster images into a local directory.
type Fetcher struct {
	dir      string
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// New builds a Fetcher storing images under dir.
func New(dir string, logger *zap.Logger) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create poster dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		dir:      dir,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: defaultMaxBytes,
		logger:   logger,
	}, nil
}

// Fetch downloads posterURL and returns the local path. An already present
// file wins without a request.
func (f *Fetcher) Fetch(ctx context.Context, posterURL, platform, sourceID string) (string, error) {
	if posterURL == "" || sourceID == "" {
		return "", fmt.Errorf("poster fetch needs a url and a source id")
	}
	target := filepath.Join(f.dir, fmt.Sprintf("%s_%s%s", platform, sourceID, extFromURL(posterURL)))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return "", fmt.Errorf("build poster request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch poster %s: %w", posterURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch poster %s: status %d", posterURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("fetch poster %s: unexpected content type %q", posterURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read poster body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("poster %s exceeds %d bytes", posterURL, f.maxBytes)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write poster %s: %w", target, err)
	}
	f.logger.Debug("poster saved", zap.String("path", target))
	return target, nil
}

func extFromURL(rawURL string) string {
	ext := strings.ToLower(filepath.Ext(rawURL))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}
