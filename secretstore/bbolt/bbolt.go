// Package bbolt provides a BBolt-backed secret store.
package bbolt

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/jmcleod/pinvault/secretstore"
	"go.etcd.io/bbolt"
)

// record is the on-disk form of a secret entry.
type record struct {
	Value     []byte `cbor:"1,keyasint"`
	UpdatedAt int64  `cbor:"2,keyasint"`
}

// Store implements secretstore.Store backed by a BBolt database. Each
// namespace maps to its own bucket.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ secretstore.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
// The file is created with owner-only permissions.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) encode(value []byte) ([]byte, error) {
	return cbor.Marshal(record{Value: value, UpdatedAt: s.now().UTC().Unix()})
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	data, err := s.encode(value)
	if err != nil {
		return secretstore.NewStoreError("set", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return secretstore.NewStoreError("set", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		// data is only valid inside the transaction; Unmarshal copies it out.
		return cbor.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, false, secretstore.NewStoreError("get", err)
	}
	if !found {
		return nil, false, nil
	}
	if rec.Value == nil {
		rec.Value = []byte{}
	}
	return rec.Value, true, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return secretstore.NewStoreError("delete", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	data, err := s.encode(value)
	if err != nil {
		return secretstore.NewStoreError("create", err)
	}
	exists := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		if b.Get([]byte(key)) != nil {
			exists = true
			return nil
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return secretstore.NewStoreError("create", err)
	}
	if exists {
		return secretstore.ErrExists
	}
	return nil
}

// UpdatedAt reports when the entry was last written.
func (s *Store) UpdatedAt(namespace, key string) (time.Time, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &rec)
	})
	if err != nil {
		return time.Time{}, false, secretstore.NewStoreError("get", err)
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.Unix(rec.UpdatedAt, 0).UTC(), true, nil
}
