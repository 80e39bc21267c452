package crawler

import (
	"bytes"
	"strings"
)

// Default signals for anti-bot interstitials. Empirically tuned against the
// target sites and overridable through configuration; treat them as a
// starting point, not ground truth.
var (
	DefaultBlockedStatuses = []int{403, 429, 503}
	DefaultBlockKeywords   = []string{
		"captcha",
		"access denied",
		"blocked",
		"rate limit",
		"too many requests",
		"unusual traffic",
		"verify you are a human",
		"安全验证",
		"检测到有异常请求",
	}
	// DefaultMinContentBytes: real list/detail pages on all three platforms
	// are tens of kilobytes; anything under this is an error shell.
	DefaultMinContentBytes = 1000
)

// HeuristicDetector implements Detector with ordered status, size, and
// keyword checks.
type HeuristicDetector struct {
	blockedStatuses map[int]struct{}
	minContentBytes int
	keywords        [][]byte
}

// NewHeuristicDetector builds a detector. Nil or empty arguments fall back
// to the package defaults.
func NewHeuristicDetector(statuses []int, minBytes int, keywords []string) *HeuristicDetector {
	if len(statuses) == 0 {
		statuses = DefaultBlockedStatuses
	}
	if minBytes <= 0 {
		minBytes = DefaultMinContentBytes
	}
	if len(keywords) == 0 {
		keywords = DefaultBlockKeywords
	}
	statusSet := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		statusSet[s] = struct{}{}
	}
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			lowered = append(lowered, []byte(kw))
		}
	}
	return &HeuristicDetector{
		blockedStatuses: statusSet,
		minContentBytes: minBytes,
		keywords:        lowered,
	}
}

// Classify applies the rules in order: blocked status, short body, blocked
// keyword, otherwise OK. A zero status code means the transport never got a
// response and is classified by body length alone.
func (d *HeuristicDetector) Classify(statusCode int, body []byte) Verdict {
	if _, blocked := d.blockedStatuses[statusCode]; blocked {
		return VerdictBlocked
	}
	if len(body) < d.minContentBytes {
		return VerdictEmpty
	}
	lower := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lower, kw) {
			return VerdictBlocked
		}
	}
	return VerdictOK
}
