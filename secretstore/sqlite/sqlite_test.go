package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/jmcleod/pinvault/secretstore"
	"github.com/jmcleod/pinvault/secretstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) secretstore.Store {
		s, err := Open(t.Context(), filepath.Join(t.TempDir(), "secrets.sqlite"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	ctx := t.Context()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "com.everline.encryption", "master-key", make([]byte, 32)))
	v, ok, err := s.Get(ctx, "com.everline.encryption", "master-key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, v, 32)
}

func TestSQLiteStore_SetKeepsOneRow(t *testing.T) {
	ctx := t.Context()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	for i := range 3 {
		require.NoError(t, s.Set(ctx, "ns", "k", []byte{byte(i)}))
	}
	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets WHERE namespace = 'ns'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_ClosedDBReturnsStoreError(t *testing.T) {
	ctx := t.Context()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(ctx, "ns", "k")
	require.ErrorIs(t, err, secretstore.ErrStore)
}
