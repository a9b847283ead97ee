// Package memory provides a thread-safe in-memory implementation of secretstore.Store.
package memory

import (
	"context"
	"sync"

	"github.com/jmcleod/pinvault/internal/util"
	"github.com/jmcleod/pinvault/secretstore"
)

// Store is a thread-safe in-memory implementation of secretstore.Store.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ secretstore.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(namespace, key)
	s.insertLocked(namespace, key, value)
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, false, nil
	}
	return util.CopyBytes(v), true, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(namespace, key)
	return nil
}

func (s *Store) Create(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[namespace][key]; ok {
		return secretstore.ErrExists
	}
	s.insertLocked(namespace, key, value)
	return nil
}

// Len returns the number of stored entries across all namespaces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ns := range s.data {
		n += len(ns)
	}
	return n
}

func (s *Store) insertLocked(namespace, key string, value []byte) {
	if _, ok := s.data[namespace]; !ok {
		s.data[namespace] = make(map[string][]byte)
	}
	s.data[namespace][key] = util.CopyBytes(value)
}

func (s *Store) deleteLocked(namespace, key string) {
	ns, ok := s.data[namespace]
	if !ok {
		return
	}
	if old, ok := ns[key]; ok {
		util.WipeBytes(old)
		delete(ns, key)
	}
	if len(ns) == 0 {
		delete(s.data, namespace)
	}
}
