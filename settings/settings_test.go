package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidate(t *testing.T) {
	p := Defaults()
	p.AutoLockMinutes = 7
	require.ErrorIs(t, p.Validate(), ErrInvalidPreferences)

	p = Defaults()
	p.PanicSensitivity = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidPreferences)
}

func TestAutoLockAfter(t *testing.T) {
	p := Defaults()
	assert.Zero(t, p.AutoLockAfter())

	p.AutoLockEnabled = true
	p.AutoLockMinutes = 15
	assert.Equal(t, 15*time.Minute, p.AutoLockAfter())
}

func TestMemory(t *testing.T) {
	ctx := t.Context()
	m := NewMemory(Defaults())

	p := Defaults()
	p.RequireBiometrics = true
	require.NoError(t, m.Save(ctx, p))

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.RequireBiometrics)

	p.AutoLockMinutes = 2
	require.Error(t, m.Save(ctx, p))
}

func TestFile_MissingFileYieldsDefaults(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "prefs.yaml"))
	got, err := f.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	f := NewFile(path)

	p := Defaults()
	p.PanicLockEnabled = true
	p.AutoLockEnabled = true
	p.AutoLockMinutes = 30
	require.NoError(t, f.Save(ctx, p))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFile(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestFile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("require_biometrics: true\n"), 0o600))

	got, err := NewFile(path).Load(t.Context())
	require.NoError(t, err)
	assert.True(t, got.RequireBiometrics)
	assert.Equal(t, 5, got.AutoLockMinutes)
	assert.Equal(t, 2.5, got.PanicSensitivity)
}

func TestFile_RejectsInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_lock_minutes: 3\n"), 0o600))

	_, err := NewFile(path).Load(t.Context())
	require.ErrorIs(t, err, ErrInvalidPreferences)
}
