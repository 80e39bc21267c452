package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestModeController_StartsDirect(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{}, newTestClock())
	require.Equal(t, ModeDirect, mc.ModeFor(PurposeList))
}

func TestModeController_StartRendered(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{StartRendered: true}, newTestClock())
	require.Equal(t, ModeRendered, mc.ModeFor(PurposeList))
}

func TestModeController_EscalatesAtThreshold(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{EscalationThreshold: 2}, newTestClock())

	require.False(t, mc.Observe(VerdictBlocked))
	require.Equal(t, ModeDirect, mc.ModeFor(PurposeList))

	require.True(t, mc.Observe(VerdictBlocked))
	require.Equal(t, ModeRendered, mc.ModeFor(PurposeList))
	require.Equal(t, 1, mc.Escalations())

	// The streak resets with the mode switch.
	require.Zero(t, mc.Snapshot().ConsecutiveFailures)
}

func TestModeController_SuccessResetsStreak(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{EscalationThreshold: 2}, newTestClock())
	require.False(t, mc.Observe(VerdictBlocked))
	require.False(t, mc.Observe(VerdictOK))
	require.False(t, mc.Observe(VerdictBlocked))
	require.Equal(t, ModeDirect, mc.ModeFor(PurposeDetail))
}

func TestModeController_EmptyAndTransportCountAsFailures(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{EscalationThreshold: 2}, newTestClock())
	require.False(t, mc.Observe(VerdictEmpty))
	require.True(t, mc.Observe(VerdictTransportError))
	require.Equal(t, ModeRendered, mc.ModeFor(PurposeDetail))
}

func TestModeController_CooldownWhileRendered(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	mc := NewModeController(ModeConfig{
		EscalationThreshold:    2,
		MaxConsecutiveFailures: 3,
		Cooldown:               time.Minute,
		StartRendered:          true,
	}, clock)

	for i := 0; i < 2; i++ {
		require.False(t, mc.Observe(VerdictBlocked))
		require.False(t, mc.Snapshot().InCooldown(clock.Now()))
	}
	require.False(t, mc.Observe(VerdictBlocked))

	snap := mc.Snapshot()
	require.True(t, snap.InCooldown(clock.Now()))
	require.Equal(t, ModeRendered, snap.Mode)
	require.Zero(t, snap.ConsecutiveFailures)

	clock.now = clock.now.Add(61 * time.Second)
	require.False(t, mc.Snapshot().InCooldown(clock.Now()))
}

func TestModeController_RenderedIsSticky(t *testing.T) {
	t.Parallel()

	mc := NewModeController(ModeConfig{EscalationThreshold: 1}, newTestClock())
	require.True(t, mc.Observe(VerdictBlocked))
	require.False(t, mc.Observe(VerdictOK))
	require.Equal(t, ModeRendered, mc.ModeFor(PurposeDetail))
}
