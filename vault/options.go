package vault

import (
	"log/slog"

	"github.com/juju/clock"
	"github.com/jmcleod/pinvault/internal/util"
	"github.com/jmcleod/pinvault/settings"
)

// Option configures an Authenticator, a Cipher or a Vault.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	clock       clock.Clock
	metrics     *Collector
	policy      PINPolicy
	scheme      VerifierScheme
	argonParams Argon2idParams
	lockout     LockoutPolicy
	prefs       settings.Store
	keyCache    bool
}

func newOptions(opts ...Option) options {
	o := options{
		logger:      slog.Default(),
		clock:       clock.WallClock,
		scheme:      SchemeSHA256,
		argonParams: util.DefaultArgon2idParams(),
		lockout:     DefaultLockoutPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for lockout and auto-lock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithMetrics records authentication and decryption outcomes on c.
func WithMetrics(c *Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// WithPINPolicy restricts the PINs accepted by SetupPIN and ChangePIN.
func WithPINPolicy(p PINPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithVerifierScheme selects how new verifiers are derived.
// Default: SchemeSHA256.
func WithVerifierScheme(s VerifierScheme) Option {
	return func(o *options) {
		o.scheme = s
	}
}

// WithArgon2idParams sets the parameters used by SchemeArgon2id.
func WithArgon2idParams(params Argon2idParams) Option {
	return func(o *options) {
		o.argonParams = params
	}
}

// WithLockoutPolicy overrides the failure threshold and cooldown.
func WithLockoutPolicy(p LockoutPolicy) Option {
	return func(o *options) {
		if p.MaxFailures > 0 && p.Cooldown > 0 {
			o.lockout = p
		}
	}
}

// WithPreferences supplies the settings store read for biometric and auto-lock behaviour.
func WithPreferences(s settings.Store) Option {
	return func(o *options) {
		o.prefs = s
	}
}

// WithKeyCache keeps the encryption key in a memguard enclave for the
// lifetime of the session instead of reading it from the store per operation.
func WithKeyCache() Option {
	return func(o *options) {
		o.keyCache = true
	}
}
