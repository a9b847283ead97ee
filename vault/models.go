// Package vault implements the local vault: PIN authentication with lockout
// protection and authenticated encryption of private media under a
// device-held key.
package vault

import (
	"time"

	"github.com/jmcleod/pinvault/internal/util"
)

// Argon2idParams configures Argon2id key derivation.
type Argon2idParams = util.Argon2idParams

// Reserved secret names.
const (
	PINNamespace = "com.everline.pin"
	PINKey       = "verifier"

	KeyNamespace = "com.everline.encryption"
	KeyName      = "master-key"
)

// AuthState is the in-memory authentication state of a session. It is never persisted.
type AuthState struct {
	FailedAttempts int
	// LockoutUntil is zero when no lockout has been entered.
	LockoutUntil time.Time
	Locked       bool
}

// IsLockedOut reports whether now falls inside the lockout window.
func (s AuthState) IsLockedOut(now time.Time) bool {
	return !s.LockoutUntil.IsZero() && now.Before(s.LockoutUntil)
}

// Phase is the authenticator state a UI renders.
type Phase int

const (
	PhaseUnconfigured Phase = iota
	PhaseConfiguring
	PhaseLocked
	PhaseLockedOut
	PhaseUnlocked
)

func (p Phase) String() string {
	switch p {
	case PhaseUnconfigured:
		return "unconfigured"
	case PhaseConfiguring:
		return "configuring"
	case PhaseLocked:
		return "locked"
	case PhaseLockedOut:
		return "locked-out"
	case PhaseUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Event is posted by an external capability into the authenticator.
type Event int

const (
	// EventBiometricSucceeded stands in for a successful PIN verification.
	EventBiometricSucceeded Event = iota + 1
	// EventPanicTriggered forces an immediate lock.
	EventPanicTriggered
	// EventBackgrounded reports the app leaving the foreground.
	EventBackgrounded
)

func (e Event) String() string {
	switch e {
	case EventBiometricSucceeded:
		return "biometric_succeeded"
	case EventPanicTriggered:
		return "panic_triggered"
	case EventBackgrounded:
		return "backgrounded"
	default:
		return "unknown"
	}
}

// LockoutPolicy controls how many consecutive failures start a lockout and for how long.
type LockoutPolicy struct {
	MaxFailures int
	Cooldown    time.Duration
}

const (
	// DefaultMaxFailures is the number of consecutive failures before lockout begins.
	DefaultMaxFailures = 5
	// DefaultCooldown is the fixed lockout duration.
	DefaultCooldown = 60 * time.Second
)

// DefaultLockoutPolicy returns five failures and a sixty second cooldown.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailures: DefaultMaxFailures, Cooldown: DefaultCooldown}
}
