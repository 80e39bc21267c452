package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// LimiterConfig tunes the politeness delay window. Zero values pick the
// defaults, which mirror cautious large-run settings for the target sites.
type LimiterConfig struct {
	DelayMin time.Duration // lower bound of the base window
	DelayMax time.Duration // upper bound of the base window

	// Failure streaks stretch the window: MildFactor applies at
	// MildThreshold consecutive failures, SevereFactor at SevereThreshold.
	MildThreshold   int
	MildFactor      float64
	SevereThreshold int
	SevereFactor    float64

	// CooldownFactor applies while the mode controller is inside its
	// cooldown window, on top of nothing else (it supersedes the streak
	// factors).
	CooldownFactor float64
}

const (
	defaultDelayMin        = 2 * time.Second
	defaultDelayMax        = 5 * time.Second
	defaultMildThreshold   = 1
	defaultMildFactor      = 1.5
	defaultSevereThreshold = 3
	defaultSevereFactor    = 2.5
	defaultCooldownFactor  = 4.0
)

// JitterLimiter enforces a randomized inter-request delay whose window
// scales with observed failure pressure. This is the crawl's backpressure
// mechanism: it trades throughput for block-avoidance.
type JitterLimiter struct {
	cfg   LimiterConfig
	clock Clock
	rng   *rand.Rand
}

// NewJitterLimiter builds a limiter. The rng seed varies per limiter so
// concurrent jobs do not pace in lockstep.
func NewJitterLimiter(cfg LimiterConfig, clock Clock) *JitterLimiter {
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = defaultDelayMin
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin + (defaultDelayMax - defaultDelayMin)
	}
	if cfg.MildThreshold <= 0 {
		cfg.MildThreshold = defaultMildThreshold
	}
	if cfg.MildFactor <= 0 {
		cfg.MildFactor = defaultMildFactor
	}
	if cfg.SevereThreshold <= cfg.MildThreshold {
		cfg.SevereThreshold = cfg.MildThreshold + (defaultSevereThreshold - defaultMildThreshold)
	}
	if cfg.SevereFactor <= 0 {
		cfg.SevereFactor = defaultSevereFactor
	}
	if cfg.CooldownFactor <= 0 {
		cfg.CooldownFactor = defaultCooldownFactor
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &JitterLimiter{
		cfg:   cfg,
		clock: clock,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay computes the next randomized delay for the given mode state. Split
// out from Wait so the scaling behavior is testable without sleeping.
func (l *JitterLimiter) Delay(state ModeSnapshot) time.Duration {
	minD, maxD := l.window(state)
	if maxD <= minD {
		return minD
	}
	return minD + time.Duration(l.rng.Int63n(int64(maxD-minD)))
}

func (l *JitterLimiter) window(state ModeSnapshot) (time.Duration, time.Duration) {
	factor := 1.0
	switch {
	case state.InCooldown(l.clock.Now()):
		factor = l.cfg.CooldownFactor
	case state.ConsecutiveFailures >= l.cfg.SevereThreshold:
		factor = l.cfg.SevereFactor
	case state.ConsecutiveFailures >= l.cfg.MildThreshold:
		factor = l.cfg.MildFactor
	}
	return scale(l.cfg.DelayMin, factor), scale(l.cfg.DelayMax, factor)
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

// Wait suspends the calling job for the computed delay. Only the calling
// goroutine sleeps; other jobs are unaffected. Returns early with the
// context error on cancellation.
func (l *JitterLimiter) Wait(ctx context.Context, state ModeSnapshot) error {
	delay := l.Delay(state)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
