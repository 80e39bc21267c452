package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterLimiter_Delay_BaseWindow(t *testing.T) {
	t.Parallel()

	l := NewJitterLimiter(LimiterConfig{
		DelayMin: 2 * time.Second,
		DelayMax: 5 * time.Second,
	}, newTestClock())

	for i := 0; i < 200; i++ {
		d := l.Delay(ModeSnapshot{})
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.Less(t, d, 5*time.Second)
	}
}

func TestJitterLimiter_Delay_FailureScaling(t *testing.T) {
	t.Parallel()

	l := NewJitterLimiter(LimiterConfig{
		DelayMin:        2 * time.Second,
		DelayMax:        5 * time.Second,
		MildThreshold:   1,
		MildFactor:      1.5,
		SevereThreshold: 3,
		SevereFactor:    2.5,
	}, newTestClock())

	for i := 0; i < 200; i++ {
		d := l.Delay(ModeSnapshot{ConsecutiveFailures: 1})
		require.GreaterOrEqual(t, d, 3*time.Second)
		require.Less(t, d, 7500*time.Millisecond)
	}
	for i := 0; i < 200; i++ {
		d := l.Delay(ModeSnapshot{ConsecutiveFailures: 3})
		require.GreaterOrEqual(t, d, 5*time.Second)
		require.Less(t, d, 12500*time.Millisecond)
	}
}

func TestJitterLimiter_Delay_CooldownSupersedesStreak(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	l := NewJitterLimiter(LimiterConfig{
		DelayMin:       time.Second,
		DelayMax:       2 * time.Second,
		CooldownFactor: 4.0,
	}, clock)

	state := ModeSnapshot{
		ConsecutiveFailures: 10,
		CooldownUntil:       clock.Now().Add(time.Minute),
	}
	for i := 0; i < 200; i++ {
		d := l.Delay(state)
		require.GreaterOrEqual(t, d, 4*time.Second)
		require.Less(t, d, 8*time.Second)
	}
}

func TestJitterLimiter_Delay_ExpiredCooldownIgnored(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	l := NewJitterLimiter(LimiterConfig{
		DelayMin:       time.Second,
		DelayMax:       2 * time.Second,
		CooldownFactor: 4.0,
	}, clock)

	state := ModeSnapshot{CooldownUntil: clock.Now().Add(-time.Second)}
	for i := 0; i < 50; i++ {
		require.Less(t, l.Delay(state), 2*time.Second)
	}
}

func TestJitterLimiter_Wait_CanceledContext(t *testing.T) {
	t.Parallel()

	l := NewJitterLimiter(LimiterConfig{
		DelayMin: time.Hour,
		DelayMax: 2 * time.Hour,
	}, newTestClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := l.Wait(ctx, ModeSnapshot{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestJitterLimiter_Wait_ShortDelayCompletes(t *testing.T) {
	t.Parallel()

	l := NewJitterLimiter(LimiterConfig{
		DelayMin: time.Millisecond,
		DelayMax: 2 * time.Millisecond,
	}, newTestClock())

	require.NoError(t, l.Wait(context.Background(), ModeSnapshot{}))
}
