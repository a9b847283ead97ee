package vault

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured indicates no PIN has been set up yet. Callers should
	// route the user into the setup flow.
	ErrNotConfigured = errors.New("vault not configured")
	// ErrAlreadyConfigured indicates a first-time setup was started while a PIN exists.
	ErrAlreadyConfigured = errors.New("vault already configured")
	// ErrLockedOut indicates verification was refused during the lockout cooldown.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrIncorrectPIN indicates the PIN did not match the stored verifier.
	ErrIncorrectPIN = errors.New("incorrect PIN")
	// ErrNotVerified indicates Unlock was called without a successful verification.
	ErrNotVerified = errors.New("identity not verified")
	// ErrVaultLocked indicates an operation that needs an unlocked session.
	ErrVaultLocked = errors.New("vault is locked")
	// ErrInvalidPIN indicates the PIN does not satisfy the configured policy.
	ErrInvalidPIN = errors.New("invalid PIN")
	// ErrPINMismatch indicates the confirmation PIN differed from the first entry.
	ErrPINMismatch = errors.New("PINs do not match")
	// ErrPINUnchanged indicates a PIN change to the current PIN.
	ErrPINUnchanged = errors.New("new PIN must differ from current PIN")
	// ErrNotConfiguring indicates ConfirmSetup without a pending BeginSetup.
	ErrNotConfiguring = errors.New("no PIN setup in progress")
	// ErrBiometricsDisabled indicates a biometric result arrived while the preference is off.
	ErrBiometricsDisabled = errors.New("biometric unlock disabled")
	// ErrDecryptionFailed indicates a payload could not be authenticated: it is
	// corrupt, truncated, or sealed under a different key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrCorruptSecret indicates a stored verifier or key has an unexpected shape.
	ErrCorruptSecret = errors.New("stored secret is corrupt")
)

// LockoutError is returned while verification is refused. It matches ErrLockedOut.
type LockoutError struct {
	Until time.Time
	now   time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%s: try again in %s", ErrLockedOut, e.RetryAfter().Round(time.Second))
}

// Is reports ErrLockedOut as the identity of every LockoutError.
func (e *LockoutError) Is(target error) bool {
	return target == ErrLockedOut
}

// RetryAfter is how long the caller should wait, measured from when the error was produced.
func (e *LockoutError) RetryAfter() time.Duration {
	d := e.Until.Sub(e.now)
	if d < 0 {
		return 0
	}
	return d
}
