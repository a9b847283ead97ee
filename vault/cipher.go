package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/pinvault/internal/util"
	"github.com/jmcleod/pinvault/secretstore"
	"golang.org/x/sync/singleflight"
)

// errNoKey is returned internally when a key is needed for reading but none
// has been created yet.
var errNoKey = errors.New("no encryption key")

// Cipher encrypts and decrypts media blobs under the device key. The key is
// created on first use and persisted once; it is never rotated.
//
// A Cipher is safe for concurrent use. Concurrent first uses in one process
// share a single key generation, and the store's Create keeps instances that
// share a store from persisting two different keys.
type Cipher struct {
	store    secretstore.Store
	logger   *slog.Logger
	audit    *auditLogger
	keyCache bool
	flight   singleflight.Group

	mu         sync.Mutex
	cached     *memguard.Enclave
	generation uint64
}

// NewCipher returns a Cipher whose key is kept in store.
func NewCipher(store secretstore.Store, opts ...Option) *Cipher {
	o := newOptions(opts...)
	return newCipher(store, o)
}

func newCipher(store secretstore.Store, o options) *Cipher {
	return &Cipher{
		store:    store,
		logger:   o.logger.With("component", "cipher"),
		audit:    newAuditLogger(o.logger, o.clock, o.metrics),
		keyCache: o.keyCache,
	}
}

// EnsureKey returns the device key, creating and persisting it if none
// exists. The returned slice is a copy the caller should wipe.
func (c *Cipher) EnsureKey(ctx context.Context) ([]byte, error) {
	enclave, err := c.keyEnclave(ctx, true)
	if err != nil {
		return nil, err
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return util.CopyBytes(buf.Bytes()), nil
}

// Encrypt seals plaintext with AES-256-GCM under a fresh nonce and returns
// nonce || ciphertext || tag. The key is created if needed.
func (c *Cipher) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enclave, err := c.keyEnclave(ctx, true)
	if err != nil {
		return nil, err
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()

	sealed, err := util.EncryptAES(plaintext, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	return sealed, nil
}

// Decrypt opens a payload produced by Encrypt. A payload that is too short,
// fails authentication or predates the current key returns
// ErrDecryptionFailed, and no plaintext is ever returned alongside an error.
// Decrypt never creates a key.
func (c *Cipher) Decrypt(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(payload) < util.GCMOverhead {
		c.decryptFailed(ctx, "short_payload")
		return nil, ErrDecryptionFailed
	}

	enclave, err := c.keyEnclave(ctx, false)
	if errors.Is(err, errNoKey) {
		c.decryptFailed(ctx, "no_key")
		return nil, ErrDecryptionFailed
	}
	if err != nil {
		return nil, err
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()

	plaintext, err := util.DecryptAES(payload, buf.Bytes())
	if err != nil {
		c.decryptFailed(ctx, "authentication")
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (c *Cipher) decryptFailed(ctx context.Context, reason string) {
	c.audit.log(ctx, AuditDecryptFailed, slog.String("reason", reason))
}

// Forget drops the cached key. The next operation reads the store again.
func (c *Cipher) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.generation++
}

func (c *Cipher) keyEnclave(ctx context.Context, create bool) (*memguard.Enclave, error) {
	c.mu.Lock()
	if c.cached != nil {
		enclave := c.cached
		c.mu.Unlock()
		return enclave, nil
	}
	gen := c.generation
	c.mu.Unlock()

	flightKey := "load"
	if create {
		flightKey = "ensure"
	}
	// The shared load outlives any one caller; each caller waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.loadKey(shared, create)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	enclave := res.Val.(*memguard.Enclave)

	if c.keyCache {
		c.mu.Lock()
		if c.generation == gen {
			c.cached = enclave
		}
		c.mu.Unlock()
	}
	return enclave, nil
}

// loadKey reads the persisted key into an enclave, generating and persisting
// one when create is set and none exists.
func (c *Cipher) loadKey(ctx context.Context, create bool) (*memguard.Enclave, error) {
	enclave, err := c.readKey(ctx)
	if err == nil || !errors.Is(err, errNoKey) || !create {
		return enclave, err
	}

	key, err := util.NewAESKey()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	err = c.store.Create(ctx, KeyNamespace, KeyName, key)
	switch {
	case errors.Is(err, secretstore.ErrExists):
		c.logger.Debug("encryption key created concurrently, using the stored key")
		return c.readKey(ctx)
	case err != nil:
		return nil, fmt.Errorf("storing encryption key: %w", err)
	}
	c.audit.log(ctx, AuditKeyCreated)
	return memguard.NewEnclave(util.CopyBytes(key)), nil
}

func (c *Cipher) readKey(ctx context.Context) (*memguard.Enclave, error) {
	raw, ok, err := c.store.Get(ctx, KeyNamespace, KeyName)
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	if !ok {
		return nil, errNoKey
	}
	if len(raw) != util.AESKeySize {
		util.WipeBytes(raw)
		return nil, fmt.Errorf("%w: encryption key has %d bytes", ErrCorruptSecret, len(raw))
	}
	// NewEnclave wipes raw.
	return memguard.NewEnclave(raw), nil
}
