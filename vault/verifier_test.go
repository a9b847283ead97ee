package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPINPolicy_Validate(t *testing.T) {
	numeric := NumericPINPolicy(4, 6)
	tests := []struct {
		name   string
		policy PINPolicy
		pin    string
		ok     bool
	}{
		{"ZeroPolicyAcceptsEmpty", PINPolicy{}, "", true},
		{"ZeroPolicyAcceptsLetters", PINPolicy{}, "open sesame", true},
		{"FourDigits", numeric, "1234", true},
		{"SixDigits", numeric, "123456", true},
		{"TooShort", numeric, "123", false},
		{"TooLong", numeric, "1234567", false},
		{"Letters", numeric, "12a4", false},
		{"Space", numeric, "12 4", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(tt.pin)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPIN)
			}
		})
	}
}

func TestParseVerifierScheme(t *testing.T) {
	s, err := ParseVerifierScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeSHA256, s)

	s, err = ParseVerifierScheme("argon2id")
	require.NoError(t, err)
	assert.Equal(t, SchemeArgon2id, s)
	assert.Equal(t, "argon2id", s.String())

	_, err = ParseVerifierScheme("md5")
	require.Error(t, err)
}

func TestVerifier_SHA256(t *testing.T) {
	v, err := newVerifier(SchemeSHA256, "1234", Argon2idParams{})
	require.NoError(t, err)
	assert.Len(t, v, sha256VerifierLen)

	ok, err := checkVerifier(v, "1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkVerifier(v, "12345")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := newVerifier(SchemeSHA256, "1234", Argon2idParams{})
	require.NoError(t, err)
	assert.Equal(t, v, again, "sha256 verifiers are deterministic")
}

func TestVerifier_Argon2idIsSalted(t *testing.T) {
	params := Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}
	a, err := newVerifier(SchemeArgon2id, "1234", params)
	require.NoError(t, err)
	b, err := newVerifier(SchemeArgon2id, "1234", params)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	for _, v := range [][]byte{a, b} {
		ok, err := checkVerifier(v, "1234")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifier_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		stored []byte
	}{
		{"Empty", nil},
		{"UnknownScheme", []byte{0x09, 1, 2}},
		{"TruncatedSHA256", append([]byte{byte(SchemeSHA256)}, make([]byte, 31)...)},
		{"TruncatedArgon2id", append([]byte{byte(SchemeArgon2id)}, make([]byte, 20)...)},
		{"ZeroArgon2idParams", append([]byte{byte(SchemeArgon2id)}, make([]byte, argon2VerifierLen-1)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := checkVerifier(tt.stored, "1234")
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrCorruptSecret)
		})
	}
}

func TestLockoutError(t *testing.T) {
	err := &LockoutError{Until: testEpoch.Add(90 * time.Second), now: testEpoch}
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.Equal(t, "too many failed attempts: try again in 1m30s", err.Error())

	expired := &LockoutError{Until: testEpoch, now: testEpoch.Add(time.Second)}
	assert.Zero(t, expired.RetryAfter())
}
