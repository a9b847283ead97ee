package paniclock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/jmcleod/pinvault/secretstore/memory"
	"github.com/jmcleod/pinvault/settings"
	"github.com/jmcleod/pinvault/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingLocker struct {
	mu     sync.Mutex
	events []vault.Event
	err    error
}

func (l *recordingLocker) HandleEvent(_ context.Context, ev vault.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, ev)
	return nil
}

func (l *recordingLocker) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func enabledPrefs() *settings.Memory {
	p := settings.Defaults()
	p.PanicLockEnabled = true
	return settings.NewMemory(p)
}

func newTestDetector(t *testing.T, prefs settings.Store, opts ...Option) (*Detector, *recordingLocker, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := &recordingLocker{}
	return NewDetector(locker, prefs, append([]Option{WithClock(clk)}, opts...)...), locker, clk
}

func TestDetector_Shake(t *testing.T) {
	ctx := t.Context()
	d, locker, _ := newTestDetector(t, enabledPrefs())

	fired, err := d.OnTrigger(ctx, Event{Kind: EventAcceleration, X: 0.1, Y: 0.2, Z: 1.0})
	require.NoError(t, err)
	assert.False(t, fired, "resting device is below the default sensitivity")

	fired, err = d.OnTrigger(ctx, Event{Kind: EventAcceleration, X: 2.0, Y: 1.5, Z: 1.0})
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, []vault.Event{vault.EventPanicTriggered}, locker.events)
}

func TestDetector_ShakeUsesConfiguredSensitivity(t *testing.T) {
	ctx := t.Context()
	p := settings.Defaults()
	p.PanicLockEnabled = true
	p.PanicSensitivity = 1.2
	d, _, _ := newTestDetector(t, settings.NewMemory(p))

	fired, err := d.OnTrigger(ctx, Event{Kind: EventAcceleration, Z: 1.5})
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestDetector_FaceDown(t *testing.T) {
	ctx := t.Context()
	d, _, _ := newTestDetector(t, enabledPrefs())

	fired, err := d.OnTrigger(ctx, Event{Kind: EventGravity, Z: -0.98})
	require.NoError(t, err)
	assert.False(t, fired)

	fired, err = d.OnTrigger(ctx, Event{Kind: EventGravity, Z: 0.9})
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestDetector_RapidTaps(t *testing.T) {
	ctx := t.Context()
	d, locker, clk := newTestDetector(t, enabledPrefs())
	tap := Event{Kind: EventTap}

	// Taps spread wider than the window never accumulate.
	for range 5 {
		fired, err := d.OnTrigger(ctx, tap)
		require.NoError(t, err)
		assert.False(t, fired)
		clk.Advance(600 * time.Millisecond)
		fired, err = d.OnTrigger(ctx, tap)
		require.NoError(t, err)
		assert.False(t, fired)
		clk.Advance(1100 * time.Millisecond)
	}
	assert.Zero(t, locker.count())

	for i := range DefaultTapCount {
		fired, err := d.OnTrigger(ctx, tap)
		require.NoError(t, err)
		assert.Equal(t, i == DefaultTapCount-1, fired)
		clk.Advance(200 * time.Millisecond)
	}
	assert.Equal(t, 1, locker.count())
}

func TestDetector_CooldownPerTrigger(t *testing.T) {
	ctx := t.Context()
	d, locker, clk := newTestDetector(t, enabledPrefs())
	shake := Event{Kind: EventAcceleration, X: 3}
	faceDown := Event{Kind: EventGravity, Z: 1}

	fired, err := d.OnTrigger(ctx, shake)
	require.NoError(t, err)
	require.True(t, fired)

	clk.Advance(time.Second)
	fired, err = d.OnTrigger(ctx, shake)
	require.NoError(t, err)
	assert.False(t, fired, "residual motion inside the cooldown is ignored")

	fired, err = d.OnTrigger(ctx, faceDown)
	require.NoError(t, err)
	assert.True(t, fired, "cooldowns are independent per trigger")

	clk.Advance(time.Second)
	fired, err = d.OnTrigger(ctx, shake)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 3, locker.count())
}

func TestDetector_DisabledIgnoresPanicTriggers(t *testing.T) {
	ctx := t.Context()
	d, locker, _ := newTestDetector(t, settings.NewMemory(settings.Defaults()))

	for _, ev := range []Event{
		{Kind: EventAcceleration, X: 10},
		{Kind: EventGravity, Z: 1},
		{Kind: EventTap}, {Kind: EventTap}, {Kind: EventTap},
	} {
		fired, err := d.OnTrigger(ctx, ev)
		require.NoError(t, err)
		assert.False(t, fired)
	}
	assert.Zero(t, locker.count())
}

func TestDetector_BackgroundAlwaysLocks(t *testing.T) {
	ctx := t.Context()
	d, locker, _ := newTestDetector(t, settings.NewMemory(settings.Defaults()))

	for range 2 {
		fired, err := d.OnTrigger(ctx, Event{Kind: EventBackground})
		require.NoError(t, err)
		assert.True(t, fired)
	}
	assert.Equal(t, []vault.Event{vault.EventBackgrounded, vault.EventBackgrounded}, locker.events)
}

func TestDetector_LockerError(t *testing.T) {
	d, locker, _ := newTestDetector(t, enabledPrefs())
	locker.err = errors.New("boom")

	fired, err := d.OnTrigger(t.Context(), Event{Kind: EventBackground})
	assert.False(t, fired)
	require.ErrorContains(t, err, "locking vault on background")
}

func TestDetector_LocksRealVault(t *testing.T) {
	ctx := t.Context()
	v := vault.New(memory.NewStore())
	require.NoError(t, v.Authenticator().SetupPIN(ctx, "1234"))
	require.NoError(t, v.Authenticator().Authenticate(ctx, "1234"))

	d := NewDetector(v, enabledPrefs())
	fired, err := d.OnTrigger(ctx, Event{Kind: EventAcceleration, X: 4})
	require.NoError(t, err)
	require.True(t, fired)
	assert.False(t, v.Authenticator().IsUnlocked(ctx))
}

func TestDetector_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	d, locker, _ := newTestDetector(t, enabledPrefs())

	events := make(chan Event)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, events) }()

	events <- Event{Kind: EventAcceleration, X: 5}
	events <- Event{Kind: EventBackground}
	close(events)
	require.NoError(t, <-done)
	assert.Equal(t, 2, locker.count())

	events = make(chan Event)
	go func() { done <- d.Run(ctx, events) }()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
