// Package secretstore provides durable storage for the vault's named secrets.
//
// A secret is identified by a (namespace, key) pair and holds an opaque byte
// value. Backends never report "not found" as an error, and their failures are
// reduced to a StoreError so raw system errors do not travel past this layer.
package secretstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStore matches every failure of the underlying secure storage.
	ErrStore = errors.New("secret store failure")
	// ErrExists is returned by Create when the entry is already present.
	ErrExists = errors.New("secret already exists")
)

// Store persists secret entries keyed by namespace and key.
type Store interface {
	// Set writes value, replacing any prior entry. The previous entry is
	// removed before the new one is inserted.
	Set(ctx context.Context, namespace, key string, value []byte) error
	// Get returns the stored value and true, or nil and false when absent.
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	// Delete removes the entry. Deleting a missing entry succeeds.
	Delete(ctx context.Context, namespace, key string) error
	// Create inserts value only if no entry exists, otherwise ErrExists.
	Create(ctx context.Context, namespace, key string, value []byte) error
}

// StoreError reports a failed storage operation without exposing the cause in
// its message. The cause is kept for diagnostics.
type StoreError struct {
	Op    string
	cause error
}

// NewStoreError wraps cause as a StoreError for the named operation.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{Op: op, cause: cause}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("secret store: %s failed", e.Op)
}

// Is reports ErrStore as the identity of every StoreError.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Cause returns the underlying backend error. It must only be logged at debug
// level and never shown to users.
func (e *StoreError) Cause() error {
	return e.cause
}

// ValidateName rejects empty namespaces or keys.
func ValidateName(namespace, key string) error {
	if namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	return nil
}
