package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviecrawler_fetches_total",
		Help: "Pages fetched, labeled by fetch mode.",
	}, []string{"mode"})
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviecrawler_fetch_errors_total",
		Help: "Transport-level fetch failures, labeled by fetch mode.",
	}, []string{"mode"})
	blockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviecrawler_blocked_total",
		Help: "Fetches classified as anti-bot blocks, labeled by fetch mode.",
	}, []string{"mode"})
	renderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviecrawler_render_fallbacks_total",
		Help: "Rendered fetches that fell back to the direct client.",
	})
	escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviecrawler_mode_escalations_total",
		Help: "Direct to Rendered mode escalations.",
	})
	recordsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviecrawler_records_collected_total",
		Help: "Normalized movie records collected, labeled by platform.",
	}, []string{"platform"})
	softFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviecrawler_soft_failures_total",
		Help: "Detail pages fetched but not normalizable, labeled by platform.",
	}, []string{"platform"})
)
