package crawler

import "time"

// ModeConfig tunes the escalation state machine. Zero values pick the
// defaults below.
type ModeConfig struct {
	// EscalationThreshold is the consecutive-failure count that flips
	// Direct to Rendered.
	EscalationThreshold int
	// MaxConsecutiveFailures is the count that, while already Rendered,
	// triggers a cooldown window.
	MaxConsecutiveFailures int
	// Cooldown is how long the rate limiter stretches delays after
	// Rendered mode keeps failing.
	Cooldown time.Duration
	// StartRendered starts the job in Rendered mode for platforms that
	// serve nothing without JavaScript.
	StartRendered bool
}

const (
	defaultEscalationThreshold = 2
	defaultMaxConsecutiveFails = 3
	defaultCooldown            = 60 * time.Second
)

// ModeSnapshot is the read-only view the rate limiter keys its backpressure
// off.
type ModeSnapshot struct {
	Mode                Mode
	ConsecutiveFailures int
	CooldownUntil       time.Time
}

// InCooldown reports whether the snapshot is inside its cooldown window.
func (s ModeSnapshot) InCooldown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// ModeController decides which fetch mode each request uses, escalating
// from Direct to Rendered on repeated failures. It replaces the scattered
// use_selenium / consecutive_fails booleans of ad-hoc crawlers with one
// explicit state machine.
//
// A controller belongs to exactly one job and is driven from that job's
// sequential loop, so it is deliberately unsynchronized.
type ModeController struct {
	cfg   ModeConfig
	clock Clock

	mode                Mode
	consecutiveFailures int
	cooldownUntil       time.Time
	escalations         int
}

// NewModeController builds a controller in its starting mode.
func NewModeController(cfg ModeConfig, clock Clock) *ModeController {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = defaultEscalationThreshold
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFails
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if clock == nil {
		clock = SystemClock{}
	}
	mode := ModeDirect
	if cfg.StartRendered {
		mode = ModeRendered
	}
	return &ModeController{cfg: cfg, clock: clock, mode: mode}
}

// ModeFor returns the mode the next request should use. List and detail
// pages share the escalation state: once a job has escalated to Rendered it
// stays there, which also means detail pages inherit whichever mode last
// worked.
func (c *ModeController) ModeFor(_ Purpose) Mode { return c.mode }

// Observe feeds a fetch verdict back into the state machine. It returns
// true when the verdict caused a Direct→Rendered escalation. The controller
// never blocks; cooldown pressure is applied by the rate limiter via
// Snapshot.
func (c *ModeController) Observe(v Verdict) bool {
	if v == VerdictOK {
		c.consecutiveFailures = 0
		return false
	}
	c.consecutiveFailures++
	switch c.mode {
	case ModeDirect:
		if c.consecutiveFailures >= c.cfg.EscalationThreshold {
			c.mode = ModeRendered
			c.consecutiveFailures = 0
			c.escalations++
			return true
		}
	case ModeRendered:
		if c.consecutiveFailures >= c.cfg.MaxConsecutiveFailures {
			c.cooldownUntil = c.clock.Now().Add(c.cfg.Cooldown)
			c.consecutiveFailures = 0
		}
	}
	return false
}

// Snapshot exposes the state the rate limiter needs.
func (c *ModeController) Snapshot() ModeSnapshot {
	return ModeSnapshot{
		Mode:                c.mode,
		ConsecutiveFailures: c.consecutiveFailures,
		CooldownUntil:       c.cooldownUntil,
	}
}

// Escalations returns how many Direct→Rendered transitions have happened.
func (c *ModeController) Escalations() int { return c.escalations }
