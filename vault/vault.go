package vault

import (
	"context"
	"log/slog"

	"github.com/jmcleod/pinvault/secretstore"
)

// Vault ties an Authenticator and a Cipher over one secret store. Media
// operations through the Vault require an unlocked session and count as
// activity for auto-lock; the cached key is dropped whenever the session
// locks or the vault is reset.
type Vault struct {
	auth   *Authenticator
	cipher *Cipher
	logger *slog.Logger
}

// New creates a locked Vault backed by store.
func New(store secretstore.Store, opts ...Option) *Vault {
	o := newOptions(opts...)
	v := &Vault{
		auth:   newAuthenticator(store, o),
		cipher: newCipher(store, o),
		logger: o.logger.With("component", "vault"),
	}
	v.auth.OnLock(v.cipher.Forget)
	return v
}

// Authenticator returns the vault's authenticator.
func (v *Vault) Authenticator() *Authenticator {
	return v.auth
}

// Cipher returns the vault's cipher. It does not check the session state.
func (v *Vault) Cipher() *Cipher {
	return v.cipher
}

// HandleEvent forwards an external event to the authenticator.
func (v *Vault) HandleEvent(ctx context.Context, ev Event) error {
	return v.auth.HandleEvent(ctx, ev)
}

func (v *Vault) requireUnlocked(ctx context.Context) error {
	if !v.auth.IsUnlocked(ctx) {
		v.logger.Debug("refusing media operation while locked")
		return ErrVaultLocked
	}
	v.auth.Touch()
	return nil
}

// Encrypt seals plaintext for storage in the record store.
func (v *Vault) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := v.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	return v.cipher.Encrypt(ctx, plaintext)
}

// Decrypt opens a payload produced by Encrypt.
func (v *Vault) Decrypt(ctx context.Context, payload []byte) ([]byte, error) {
	if err := v.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	return v.cipher.Decrypt(ctx, payload)
}

// DecryptAsync is Decrypt on a background goroutine. The lock check happens
// before the goroutine starts.
func (v *Vault) DecryptAsync(ctx context.Context, payload []byte) <-chan DecryptResult {
	if err := v.requireUnlocked(ctx); err != nil {
		ch := make(chan DecryptResult, 1)
		ch <- DecryptResult{Err: err}
		close(ch)
		return ch
	}
	return v.cipher.DecryptAsync(ctx, payload)
}

// DecryptAll decrypts a batch with at most limit payloads in flight.
func (v *Vault) DecryptAll(ctx context.Context, payloads [][]byte, limit int) ([][]byte, error) {
	if err := v.requireUnlocked(ctx); err != nil {
		return nil, err
	}
	return v.cipher.DecryptAll(ctx, payloads, limit)
}
