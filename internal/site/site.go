// Package site defines the adapter contract each supported platform
// implements. Adapters are stateless: pure URL building and HTML extraction,
// no I/O. Everything else in the pipeline is platform-agnostic.
package site

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/movie"
)

// ErrUnknownCategory is returned by ListURL for a category the platform does
// not support. The orchestrator treats it as fatal for the job.
var ErrUnknownCategory = fmt.Errorf("unknown category")

// ErrNoMorePages is returned by ListURL when a category has no page at the
// requested index, e.g. a ranking chart that is a single page. The
// orchestrator retires the category without spending a fetch on it.
var ErrNoMorePages = fmt.Errorf("no more pages")

// Adapter is the extensibility surface of the crawler. New platforms are
// added by implementing this interface and registering it; the orchestrator,
// fetchers, and normalizer never change.
type Adapter interface {
	// Platform returns the stable platform id, e.g. "douban".
	Platform() string

	// Categories lists the category ids ListURL accepts.
	Categories() []string

	// ListURL builds the list-page URL for a category and zero-based page
	// index. Unknown categories return ErrUnknownCategory; a page index past
	// the category's last page returns ErrNoMorePages.
	ListURL(category string, page int) (string, error)

	// ExtractListLinks pulls candidate detail-page URLs out of a fetched
	// list page. Returned URLs are absolute. No deduplication is promised;
	// the orchestrator owns the seen-set.
	ExtractListLinks(baseURL string, body []byte) []string

	// ExtractDetailFields pulls the raw field map out of a detail page.
	// An error means the page is structurally unusable (soft failure).
	ExtractDetailFields(finalURL string, body []byte) (movie.RawFields, error)

	// PreferRendered reports whether this platform needs a browser even for
	// the first attempt (sites that serve nothing without JavaScript).
	PreferRendered() bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register makes an adapter available by its platform id. Called from
// adapter package init functions; duplicate registration panics because it
// is always a programming error.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	id := a.Platform()
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("site: adapter %q registered twice", id))
	}
	registry[id] = a
}

// Lookup returns the adapter for a platform id.
func Lookup(platform string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter for platform %q", platform)
	}
	return a, nil
}

// Platforms returns the registered platform ids, sorted.
func Platforms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
