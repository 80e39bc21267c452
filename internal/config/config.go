// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/crawler"
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/normalize"
)

// Config captures every knob the crawler loads via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Modes      ModesConfig      `mapstructure:"modes"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Normalize  NormalizeConfig  `mapstructure:"normalize"`
	Output     OutputConfig     `mapstructure:"output"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
}

// LoggingConfig toggles zap development features. Level, when set,
// overrides the mode's default ("debug" for development, "info" for
// production).
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FetchConfig configures the direct and rendered HTTP clients.
type FetchConfig struct {
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
	RenderTimeoutSeconds int     `mapstructure:"render_timeout_seconds"`
	SettleDelayMs        int     `mapstructure:"settle_delay_ms"`
	RenderHostQPS        float64 `mapstructure:"render_host_qps"`
}

// DetectorConfig tunes the block-page heuristics.
type DetectorConfig struct {
	BlockedStatuses []int    `mapstructure:"blocked_statuses"`
	MinContentBytes int      `mapstructure:"min_content_bytes"`
	BlockKeywords   []string `mapstructure:"block_keywords"`
}

// ModesConfig tunes per-job escalation from direct to rendered fetching.
type ModesConfig struct {
	EscalationThreshold    int `mapstructure:"escalation_threshold"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	CooldownSeconds        int `mapstructure:"cooldown_seconds"`
}

// RateLimitConfig bounds the jittered inter-request delay window.
type RateLimitConfig struct {
	DelayMinMs      int     `mapstructure:"delay_min_ms"`
	DelayMaxMs      int     `mapstructure:"delay_max_ms"`
	MildThreshold   int     `mapstructure:"mild_threshold"`
	MildFactor      float64 `mapstructure:"mild_factor"`
	SevereThreshold int     `mapstructure:"severe_threshold"`
	SevereFactor    float64 `mapstructure:"severe_factor"`
	CooldownFactor  float64 `mapstructure:"cooldown_factor"`
}

// BatchConfig governs the discovery/extraction batch loop.
type BatchConfig struct {
	Size                   int `mapstructure:"size"`
	MaxLinkRetries         int `mapstructure:"max_link_retries"`
	MaxEmptyListPages      int `mapstructure:"max_empty_list_pages"`
	InterBatchDelayMinSecs int `mapstructure:"inter_batch_delay_min_seconds"`
	InterBatchDelayMaxSecs int `mapstructure:"inter_batch_delay_max_seconds"`
}

// NormalizeConfig caps normalized record fields.
type NormalizeConfig struct {
	MaxSummaryLen int `mapstructure:"max_summary_len"`
	MaxActors     int `mapstructure:"max_actors"`
	MaxTags       int `mapstructure:"max_tags"`
}

// OutputConfig sets local persistence paths.
type OutputConfig struct {
	DataDir         string `mapstructure:"data_dir"`
	PosterDir       string `mapstructure:"poster_dir"`
	DownloadPosters bool   `mapstructure:"download_posters"`
}

// SupervisorConfig bounds multi-platform runs.
type SupervisorConfig struct {
	JobTimeoutMinutes int `mapstructure:"job_timeout_minutes"`
	MaxParallelJobs   int `mapstructure:"max_parallel_jobs"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOVIECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.render_timeout_seconds", 45)
	v.SetDefault("fetch.settle_delay_ms", 1500)
	v.SetDefault("fetch.render_host_qps", 0.5)
	v.SetDefault("detector.blocked_statuses", []int{403, 429, 503})
	v.SetDefault("detector.min_content_bytes", 1000)
	v.SetDefault("detector.block_keywords", []string{})
	v.SetDefault("modes.escalation_threshold", 2)
	v.SetDefault("modes.max_consecutive_failures", 3)
	v.SetDefault("modes.cooldown_seconds", 60)
	v.SetDefault("rate_limit.delay_min_ms", 2000)
	v.SetDefault("rate_limit.delay_max_ms", 5000)
	v.SetDefault("rate_limit.mild_threshold", 1)
	v.SetDefault("rate_limit.mild_factor", 1.5)
	v.SetDefault("rate_limit.severe_threshold", 3)
	v.SetDefault("rate_limit.severe_factor", 2.5)
	v.SetDefault("rate_limit.cooldown_factor", 4.0)
	v.SetDefault("batch.size", 50)
	v.SetDefault("batch.max_link_retries", 2)
	v.SetDefault("batch.max_empty_list_pages", 3)
	v.SetDefault("batch.inter_batch_delay_min_seconds", 5)
	v.SetDefault("batch.inter_batch_delay_max_seconds", 10)
	v.SetDefault("normalize.max_summary_len", 500)
	v.SetDefault("normalize.max_actors", 8)
	v.SetDefault("normalize.max_tags", 0)
	v.SetDefault("output.data_dir", "data")
	v.SetDefault("output.poster_dir", "data/posters")
	v.SetDefault("output.download_posters", false)
	v.SetDefault("supervisor.job_timeout_minutes", 60)
	v.SetDefault("supervisor.max_parallel_jobs", 3)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Modes.EscalationThreshold <= 0 {
		return fmt.Errorf("modes.escalation_threshold must be > 0")
	}
	if c.Modes.MaxConsecutiveFailures < c.Modes.EscalationThreshold {
		return fmt.Errorf("modes.max_consecutive_failures must be >= modes.escalation_threshold")
	}
	if c.RateLimit.DelayMinMs <= 0 || c.RateLimit.DelayMaxMs < c.RateLimit.DelayMinMs {
		return fmt.Errorf("rate_limit delay window must satisfy 0 < min <= max")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be > 0")
	}
	if c.Output.DataDir == "" {
		return fmt.Errorf("output.data_dir must be set")
	}
	if c.Supervisor.MaxParallelJobs <= 0 {
		return fmt.Errorf("supervisor.max_parallel_jobs must be > 0")
	}
	return nil
}

// ModeConfig converts the modes section for the crawler package.
func (c Config) ModeConfig(startRendered bool) crawler.ModeConfig {
	return crawler.ModeConfig{
		EscalationThreshold:    c.Modes.EscalationThreshold,
		MaxConsecutiveFailures: c.Modes.MaxConsecutiveFailures,
		Cooldown:               time.Duration(c.Modes.CooldownSeconds) * time.Second,
		StartRendered:          startRendered,
	}
}

// LimiterConfig converts the rate-limit section for the crawler package.
func (c Config) LimiterConfig() crawler.LimiterConfig {
	return crawler.LimiterConfig{
		DelayMin:        time.Duration(c.RateLimit.DelayMinMs) * time.Millisecond,
		DelayMax:        time.Duration(c.RateLimit.DelayMaxMs) * time.Millisecond,
		MildThreshold:   c.RateLimit.MildThreshold,
		MildFactor:      c.RateLimit.MildFactor,
		SevereThreshold: c.RateLimit.SevereThreshold,
		SevereFactor:    c.RateLimit.SevereFactor,
		CooldownFactor:  c.RateLimit.CooldownFactor,
	}
}

// OrchestratorConfig converts the batch section for the crawler package.
func (c Config) OrchestratorConfig() crawler.OrchestratorConfig {
	return crawler.OrchestratorConfig{
		BatchSize:          c.Batch.Size,
		MaxLinkRetries:     c.Batch.MaxLinkRetries,
		MaxEmptyListPages:  c.Batch.MaxEmptyListPages,
		InterBatchDelayMin: time.Duration(c.Batch.InterBatchDelayMinSecs) * time.Second,
		InterBatchDelayMax: time.Duration(c.Batch.InterBatchDelayMaxSecs) * time.Second,
	}
}

// DirectConfig converts the fetch section for the colly client.
func (c Config) DirectConfig() crawler.DirectConfig {
	return crawler.DirectConfig{
		Timeout: time.Duration(c.Fetch.TimeoutSeconds) * time.Second,
	}
}

// RenderConfig converts the fetch section for the chromedp client.
func (c Config) RenderConfig() crawler.RenderConfig {
	return crawler.RenderConfig{
		Timeout:     time.Duration(c.Fetch.RenderTimeoutSeconds) * time.Second,
		HostQPS:     c.Fetch.RenderHostQPS,
		SettleDelay: time.Duration(c.Fetch.SettleDelayMs) * time.Millisecond,
	}
}

// NormalizerConfig converts the normalize section.
func (c Config) NormalizerConfig() normalize.Config {
	return normalize.Config{
		MaxSummaryLen: c.Normalize.MaxSummaryLen,
		MaxActors:     c.Normalize.MaxActors,
		MaxTags:       c.Normalize.MaxTags,
	}
}

// JobTimeout is the wall-clock budget for one platform job.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Supervisor.JobTimeoutMinutes) * time.Minute
}
