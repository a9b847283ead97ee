package vault

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/jmcleod/pinvault/secretstore"
	"github.com/jmcleod/pinvault/settings"
)

const (
	lockReasonExplicit   = "explicit"
	lockReasonPanic      = "panic"
	lockReasonBackground = "background"
	lockReasonIdle       = "idle"
	lockReasonReset      = "reset"
)

// Authenticator owns the PIN lifecycle of one vault session: setup,
// verification with lockout, change, reset and the locked/unlocked state.
// All state changes go through its methods; it is safe for concurrent use.
//
// The verifier lives in the secret store. Everything else (failure count,
// lockout deadline, lock state) is session memory and starts over when the
// process does.
type Authenticator struct {
	store   secretstore.Store
	clock   clock.Clock
	logger  *slog.Logger
	audit   *auditLogger
	policy  PINPolicy
	scheme  VerifierScheme
	argon   Argon2idParams
	lockout LockoutPolicy
	prefs   settings.Store

	mu           sync.Mutex
	state        AuthState
	verified     bool
	configuring  bool
	pending      [sha256.Size]byte
	sessionID    string
	lastActivity time.Time
	onLock       []func()
}

// NewAuthenticator returns a locked Authenticator whose verifier is kept in store.
func NewAuthenticator(store secretstore.Store, opts ...Option) *Authenticator {
	o := newOptions(opts...)
	return newAuthenticator(store, o)
}

func newAuthenticator(store secretstore.Store, o options) *Authenticator {
	logger := o.logger.With("component", "authenticator")
	return &Authenticator{
		store:   store,
		clock:   o.clock,
		logger:  logger,
		audit:   newAuditLogger(o.logger, o.clock, o.metrics),
		policy:  o.policy,
		scheme:  o.scheme,
		argon:   o.argonParams,
		lockout: o.lockout,
		prefs:   o.prefs,
		state:   AuthState{Locked: true},
	}
}

// OnLock registers fn to run whenever the session locks or the vault is
// reset. fn runs with the authenticator's lock held and must not call back
// into the Authenticator.
func (a *Authenticator) OnLock(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLock = append(a.onLock, fn)
}

// IsConfigured reports whether a PIN verifier is stored.
func (a *Authenticator) IsConfigured(ctx context.Context) (bool, error) {
	_, ok, err := a.store.Get(ctx, PINNamespace, PINKey)
	if err != nil {
		return false, fmt.Errorf("loading verifier: %w", err)
	}
	return ok, nil
}

// Phase returns the current state for rendering. An unlocked session whose
// auto-lock idle window has elapsed is locked first.
func (a *Authenticator) Phase(ctx context.Context) (Phase, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.applyIdleLocked(ctx, now)

	if a.configuring {
		return PhaseConfiguring, nil
	}
	configured, err := a.IsConfigured(ctx)
	if err != nil {
		return PhaseLocked, err
	}
	switch {
	case !configured:
		return PhaseUnconfigured, nil
	case a.state.IsLockedOut(now):
		return PhaseLockedOut, nil
	case !a.state.Locked:
		return PhaseUnlocked, nil
	default:
		return PhaseLocked, nil
	}
}

// State returns a snapshot of the session state.
func (a *Authenticator) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsLockedOut reports whether verification is currently refused.
func (a *Authenticator) IsLockedOut() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.IsLockedOut(a.clock.Now())
}

// IsUnlocked reports whether the session is unlocked, applying auto-lock first.
func (a *Authenticator) IsUnlocked(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyIdleLocked(ctx, a.clock.Now())
	return !a.state.Locked
}

// SessionID identifies the current unlocked session, or "" while locked.
func (a *Authenticator) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// SetupPIN stores a verifier for pin, replacing any previous one. It is also
// the final step of ChangePIN, after the old PIN has been verified.
func (a *Authenticator) SetupPIN(ctx context.Context, pin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setupPINLocked(ctx, normalizePIN(pin))
}

func (a *Authenticator) setupPINLocked(ctx context.Context, pin string) error {
	if err := a.policy.Validate(pin); err != nil {
		return err
	}
	verifier, err := newVerifier(a.scheme, pin, a.argon)
	if err != nil {
		return fmt.Errorf("deriving verifier: %w", err)
	}
	if err := a.store.Set(ctx, PINNamespace, PINKey, verifier); err != nil {
		return fmt.Errorf("storing verifier: %w", err)
	}
	a.clearPendingLocked()
	a.audit.log(ctx, AuditPINSet, slog.String("scheme", a.scheme.String()))
	return nil
}

// BeginSetup records the first entry of a new PIN and moves to
// PhaseConfiguring. Only the digest of the entry is kept.
func (a *Authenticator) BeginSetup(ctx context.Context, pin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pin = normalizePIN(pin)
	if err := a.policy.Validate(pin); err != nil {
		return err
	}
	configured, err := a.IsConfigured(ctx)
	if err != nil {
		return err
	}
	if configured {
		return ErrAlreadyConfigured
	}
	a.pending = pendingDigest(pin)
	a.configuring = true
	a.audit.log(ctx, AuditSetupStarted)
	return nil
}

// ConfirmSetup completes a setup started with BeginSetup. A mismatch abandons
// the setup and returns ErrPINMismatch.
func (a *Authenticator) ConfirmSetup(ctx context.Context, pin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.configuring {
		return ErrNotConfiguring
	}
	pin = normalizePIN(pin)
	confirm := pendingDigest(pin)
	if subtle.ConstantTimeCompare(confirm[:], a.pending[:]) != 1 {
		a.clearPendingLocked()
		a.audit.log(ctx, AuditSetupMismatch)
		return ErrPINMismatch
	}
	return a.setupPINLocked(ctx, pin)
}

// CancelSetup abandons a pending setup.
func (a *Authenticator) CancelSetup() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearPendingLocked()
}

func (a *Authenticator) clearPendingLocked() {
	a.configuring = false
	clear(a.pending[:])
}

// VerifyPIN checks pin against the stored verifier.
//
// During a lockout it returns false and a *LockoutError without comparing
// anything or counting the attempt. Without a stored verifier it returns
// false and ErrNotConfigured. A mismatch returns false and a nil error; the
// MaxFailures-th consecutive mismatch starts a lockout and resets the count.
func (a *Authenticator) VerifyPIN(ctx context.Context, pin string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyPINLocked(ctx, normalizePIN(pin))
}

func (a *Authenticator) verifyPINLocked(ctx context.Context, pin string) (bool, error) {
	now := a.clock.Now()
	if a.state.IsLockedOut(now) {
		a.audit.log(ctx, AuditVerifyLockedOut)
		return false, &LockoutError{Until: a.state.LockoutUntil, now: now}
	}

	stored, ok, err := a.store.Get(ctx, PINNamespace, PINKey)
	if err != nil {
		return false, fmt.Errorf("loading verifier: %w", err)
	}
	if !ok {
		return false, ErrNotConfigured
	}

	match, err := checkVerifier(stored, pin)
	if err != nil {
		return false, err
	}
	if match {
		a.state.FailedAttempts = 0
		a.state.LockoutUntil = time.Time{}
		a.verified = true
		a.audit.log(ctx, AuditVerifySuccess)
		return true, nil
	}

	a.state.FailedAttempts++
	a.audit.log(ctx, AuditVerifyFailure, slog.Int("failed_attempts", a.state.FailedAttempts))
	if a.state.FailedAttempts >= a.lockout.MaxFailures {
		a.state.LockoutUntil = now.Add(a.lockout.Cooldown)
		a.state.FailedAttempts = 0
		a.audit.log(ctx, AuditLockoutStarted, slog.Time("until", a.state.LockoutUntil))
	}
	return false, nil
}

// ChangePIN replaces the PIN after verifying oldPIN. The new PIN is checked
// first so a malformed or unchanged entry does not cost an attempt. A failed
// verification leaves the stored verifier untouched.
func (a *Authenticator) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	oldPIN, newPIN = normalizePIN(oldPIN), normalizePIN(newPIN)
	if err := a.policy.Validate(newPIN); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(oldPIN), []byte(newPIN)) == 1 {
		return ErrPINUnchanged
	}

	ok, err := a.verifyPINLocked(ctx, oldPIN)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIncorrectPIN
	}
	return a.setupPINLocked(ctx, newPIN)
}

// Unlock opens the session. It requires a successful PIN or biometric
// verification since the last lock.
func (a *Authenticator) Unlock(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unlockLocked(ctx)
}

func (a *Authenticator) unlockLocked(ctx context.Context) error {
	if !a.verified {
		return ErrNotVerified
	}
	if !a.state.Locked {
		return nil
	}
	a.state.Locked = false
	a.sessionID = uuid.NewString()
	a.lastActivity = a.clock.Now()
	a.audit.log(ctx, AuditUnlocked, slog.String("session_id", a.sessionID))
	return nil
}

// Authenticate verifies pin and unlocks on success. It returns
// ErrIncorrectPIN on a mismatch, alongside the errors of VerifyPIN.
func (a *Authenticator) Authenticate(ctx context.Context, pin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ok, err := a.verifyPINLocked(ctx, normalizePIN(pin))
	if err != nil {
		return err
	}
	if !ok {
		return ErrIncorrectPIN
	}
	return a.unlockLocked(ctx)
}

// Lock closes the session. It is legal in every state and idempotent.
func (a *Authenticator) Lock(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lockLocked(ctx, lockReasonExplicit)
}

func (a *Authenticator) lockLocked(ctx context.Context, reason string) {
	wasOpen := !a.state.Locked || a.verified
	a.state.Locked = true
	a.verified = false
	a.clearPendingLocked()
	if wasOpen {
		a.audit.log(ctx, AuditLocked,
			slog.String("reason", reason),
			slog.String("session_id", a.sessionID))
	}
	a.sessionID = ""
	for _, fn := range a.onLock {
		fn()
	}
}

// Touch records user activity for the auto-lock timer.
func (a *Authenticator) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.Locked {
		a.lastActivity = a.clock.Now()
	}
}

func (a *Authenticator) applyIdleLocked(ctx context.Context, now time.Time) {
	if a.state.Locked || a.prefs == nil {
		return
	}
	p, err := a.prefs.Load(ctx)
	if err != nil {
		a.logger.Warn("failed to load preferences for auto-lock", "error", err)
		return
	}
	after := p.AutoLockAfter()
	if after > 0 && now.Sub(a.lastActivity) >= after {
		a.lockLocked(ctx, lockReasonIdle)
	}
}

// HandleEvent applies an event posted by a biometric prompt, a panic trigger
// or the app lifecycle.
func (a *Authenticator) HandleEvent(ctx context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev {
	case EventBiometricSucceeded:
		return a.acceptBiometricLocked(ctx)
	case EventPanicTriggered:
		a.lockLocked(ctx, lockReasonPanic)
		return nil
	case EventBackgrounded:
		a.lockLocked(ctx, lockReasonBackground)
		return nil
	default:
		return fmt.Errorf("unknown event %d", int(ev))
	}
}

// acceptBiometricLocked treats a biometric success like a PIN match without
// touching the PIN failure count or lockout.
func (a *Authenticator) acceptBiometricLocked(ctx context.Context) error {
	if a.prefs == nil {
		return ErrBiometricsDisabled
	}
	p, err := a.prefs.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	if !p.RequireBiometrics {
		return ErrBiometricsDisabled
	}
	configured, err := a.IsConfigured(ctx)
	if err != nil {
		return err
	}
	if !configured {
		return ErrNotConfigured
	}
	a.verified = true
	a.audit.log(ctx, AuditBiometricAccepted)
	return nil
}

// Reset deletes the PIN verifier and the encryption key, returning the vault
// to PhaseUnconfigured. Payloads encrypted before the reset can no longer be
// decrypted. Both deletions are attempted even if one fails; any failures
// are returned joined.
func (a *Authenticator) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if err := a.store.Delete(ctx, PINNamespace, PINKey); err != nil {
		errs = append(errs, fmt.Errorf("deleting verifier: %w", err))
	}
	if err := a.store.Delete(ctx, KeyNamespace, KeyName); err != nil {
		errs = append(errs, fmt.Errorf("deleting encryption key: %w", err))
	}

	a.lockLocked(ctx, lockReasonReset)
	a.state = AuthState{Locked: true}
	a.audit.log(ctx, AuditVaultReset, slog.Bool("complete", len(errs) == 0))
	return errors.Join(errs...)
}
