// Package storetest holds behaviour checks shared by every secretstore backend.
package storetest

import (
	"errors"
	"sync"
	"testing"

	"github.com/jmcleod/pinvault/secretstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the secretstore.Store contract against the store returned by newStore.
// newStore is called once per subtest and must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) secretstore.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(t.Context(), "ns", "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "ns", "k", []byte("value")))

		v, ok, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("value"), v)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "ns", "k", []byte("first")))
		require.NoError(t, s.Set(ctx, "ns", "k", []byte("second")))

		v, ok, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("second"), v)
	})

	t.Run("SetEmptyValue", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "ns", "k", nil))

		v, ok, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, v)
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "a", "k", []byte("in a")))
		require.NoError(t, s.Set(ctx, "b", "k", []byte("in b")))

		v, _, err := s.Get(ctx, "a", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("in a"), v)
		v, _, err = s.Get(ctx, "b", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("in b"), v)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Delete(ctx, "ns", "never-set"))
		require.NoError(t, s.Set(ctx, "ns", "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "ns", "k"))
		require.NoError(t, s.Delete(ctx, "ns", "k"))

		_, ok, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CreateOnlyOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.Create(ctx, "ns", "k", []byte("first")))
		err := s.Create(ctx, "ns", "k", []byte("second"))
		require.ErrorIs(t, err, secretstore.ErrExists)

		v, _, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), v)
	})

	t.Run("ReturnedValueIsACopy", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		in := []byte("value")
		require.NoError(t, s.Set(ctx, "ns", "k", in))
		in[0] = 'X'

		v, _, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		v[1] = 'Y'

		again, _, err := s.Get(ctx, "ns", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), again)
	})

	t.Run("RejectsEmptyNames", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		assert.Error(t, s.Set(ctx, "", "k", []byte("v")))
		assert.Error(t, s.Set(ctx, "ns", "", []byte("v")))
	})

	t.Run("ConcurrentCreateHasOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Create(ctx, "ns", "k", []byte{byte(i)})
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				if !errors.Is(err, secretstore.ErrExists) {
					t.Errorf("unexpected create error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})
}
