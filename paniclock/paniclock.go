// Package paniclock turns raw motion, tap and lifecycle signals into
// immediate vault locks.
//
// Sensors post Events to a Detector. The Detector decides whether an event is
// a trigger, applies a per-trigger cooldown so residual motion does not fire
// repeatedly, and forwards the lock to the vault.
package paniclock

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/jmcleod/pinvault/settings"
	"github.com/jmcleod/pinvault/vault"
)

const (
	// DefaultCooldown suppresses repeat firing of the same trigger.
	DefaultCooldown = 2 * time.Second
	// DefaultFaceDownThreshold is the gravity z component above which the
	// device counts as face down.
	DefaultFaceDownThreshold = 0.75
	// DefaultTapCount taps within DefaultTapWindow fire TriggerRapidTaps.
	DefaultTapCount  = 3
	DefaultTapWindow = time.Second
)

// EventKind identifies the raw signal carried by an Event.
type EventKind int

const (
	// EventAcceleration is an accelerometer sample in g.
	EventAcceleration EventKind = iota + 1
	// EventGravity is a device-motion gravity sample in g.
	EventGravity
	// EventTap is a single tap anywhere on screen.
	EventTap
	// EventBackground reports the app losing the foreground.
	EventBackground
)

// Event is a raw signal from a sensor or the app lifecycle. X, Y and Z are
// only meaningful for the motion kinds.
type Event struct {
	Kind    EventKind
	X, Y, Z float64
}

// Trigger is a classified lock trigger.
type Trigger int

const (
	TriggerShake Trigger = iota + 1
	TriggerFaceDown
	TriggerRapidTaps
	TriggerBackground
)

func (t Trigger) String() string {
	switch t {
	case TriggerShake:
		return "shake"
	case TriggerFaceDown:
		return "face_down"
	case TriggerRapidTaps:
		return "rapid_taps"
	case TriggerBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Locker is what a Detector locks. *vault.Vault and *vault.Authenticator
// satisfy it.
type Locker interface {
	HandleEvent(ctx context.Context, ev vault.Event) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the time source for cooldowns and tap windows.
func WithClock(clk clock.Clock) Option {
	return func(d *Detector) {
		if clk != nil {
			d.clock = clk
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithCooldown sets how long a trigger stays quiet after firing.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Detector) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithRapidTaps sets how many taps within window fire TriggerRapidTaps.
func WithRapidTaps(count int, window time.Duration) Option {
	return func(d *Detector) {
		if count > 0 && window > 0 {
			d.tapCount = count
			d.tapWindow = window
		}
	}
}

// WithFaceDownThreshold sets the gravity z threshold for TriggerFaceDown.
func WithFaceDownThreshold(z float64) Option {
	return func(d *Detector) {
		d.faceDownZ = z
	}
}

// Detector classifies events and locks the vault when a trigger fires. It is
// safe for concurrent use.
type Detector struct {
	locker    Locker
	prefs     settings.Store
	clock     clock.Clock
	logger    *slog.Logger
	cooldown  time.Duration
	tapCount  int
	tapWindow time.Duration
	faceDownZ float64

	mu        sync.Mutex
	lastFired map[Trigger]time.Time
	taps      []time.Time
}

// NewDetector returns a Detector that locks locker. Panic triggers are only
// honoured while prefs has panic lock enabled; backgrounding always locks.
func NewDetector(locker Locker, prefs settings.Store, opts ...Option) *Detector {
	d := &Detector{
		locker:    locker,
		prefs:     prefs,
		clock:     clock.WallClock,
		logger:    slog.Default(),
		cooldown:  DefaultCooldown,
		tapCount:  DefaultTapCount,
		tapWindow: DefaultTapWindow,
		faceDownZ: DefaultFaceDownThreshold,
		lastFired: make(map[Trigger]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "paniclock")
	return d
}

// OnTrigger handles one event and reports whether it locked the vault.
func (d *Detector) OnTrigger(ctx context.Context, ev Event) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if ev.Kind == EventBackground {
		return d.fireLocked(ctx, TriggerBackground, now)
	}

	prefs, err := d.prefs.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading preferences: %w", err)
	}
	if !prefs.PanicLockEnabled {
		return false, nil
	}

	trigger, ok := d.classifyLocked(ev, prefs, now)
	if !ok {
		return false, nil
	}
	if last, seen := d.lastFired[trigger]; seen && now.Sub(last) < d.cooldown {
		d.logger.Debug("trigger suppressed by cooldown", "trigger", trigger.String())
		return false, nil
	}
	return d.fireLocked(ctx, trigger, now)
}

func (d *Detector) classifyLocked(ev Event, prefs settings.Preferences, now time.Time) (Trigger, bool) {
	switch ev.Kind {
	case EventAcceleration:
		magnitude := math.Sqrt(ev.X*ev.X + ev.Y*ev.Y + ev.Z*ev.Z)
		return TriggerShake, magnitude > prefs.PanicSensitivity
	case EventGravity:
		return TriggerFaceDown, ev.Z > d.faceDownZ
	case EventTap:
		cutoff := now.Add(-d.tapWindow)
		kept := d.taps[:0]
		for _, at := range d.taps {
			if at.After(cutoff) {
				kept = append(kept, at)
			}
		}
		d.taps = append(kept, now)
		if len(d.taps) < d.tapCount {
			return TriggerRapidTaps, false
		}
		d.taps = d.taps[:0]
		return TriggerRapidTaps, true
	default:
		return 0, false
	}
}

func (d *Detector) fireLocked(ctx context.Context, trigger Trigger, now time.Time) (bool, error) {
	d.lastFired[trigger] = now
	ev := vault.EventPanicTriggered
	if trigger == TriggerBackground {
		ev = vault.EventBackgrounded
	}
	if err := d.locker.HandleEvent(ctx, ev); err != nil {
		return false, fmt.Errorf("locking vault on %s: %w", trigger, err)
	}
	d.logger.Info("vault locked", "trigger", trigger.String())
	return true, nil
}

// Run feeds events to OnTrigger until events is closed or ctx is done.
// Failures are logged and do not stop the loop.
func (d *Detector) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := d.OnTrigger(ctx, ev); err != nil {
				d.logger.Error("failed to handle panic event", "error", err)
			}
		}
	}
}
