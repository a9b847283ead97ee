package vault

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/jmcleod/pinvault/internal/util"
)

// VerifierScheme selects how a PIN verifier is derived.
type VerifierScheme byte

const (
	// SchemeSHA256 stores SHA-256 of the normalized PIN.
	SchemeSHA256 VerifierScheme = 0x01
	// SchemeArgon2id stores a salted Argon2id derivation of the normalized PIN.
	SchemeArgon2id VerifierScheme = 0x02
)

func (s VerifierScheme) String() string {
	switch s {
	case SchemeSHA256:
		return "sha256"
	case SchemeArgon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

// ParseVerifierScheme maps a configuration name to a scheme.
func ParseVerifierScheme(name string) (VerifierScheme, error) {
	switch name {
	case "", "sha256":
		return SchemeSHA256, nil
	case "argon2id":
		return SchemeArgon2id, nil
	default:
		return 0, fmt.Errorf("unknown verifier scheme %q", name)
	}
}

const (
	verifierSaltLen   = 16
	sha256VerifierLen = 1 + sha256.Size
	// scheme | time u32 | memory u32 | parallelism u8 | salt | key
	argon2VerifierLen = 1 + 4 + 4 + 1 + verifierSaltLen + 32
)

// newVerifier derives the stored form of pin. pin must already be normalized.
func newVerifier(scheme VerifierScheme, pin string, params Argon2idParams) ([]byte, error) {
	raw := []byte(pin)
	defer util.WipeBytes(raw)

	switch scheme {
	case SchemeSHA256:
		sum := sha256.Sum256(raw)
		out := make([]byte, 0, sha256VerifierLen)
		out = append(out, byte(SchemeSHA256))
		return append(out, sum[:]...), nil
	case SchemeArgon2id:
		salt, err := util.RandomBytes(verifierSaltLen)
		if err != nil {
			return nil, err
		}
		key, err := util.DeriveArgon2idKey(raw, salt, params)
		if err != nil {
			return nil, err
		}
		defer util.WipeBytes(key)
		out := make([]byte, 0, argon2VerifierLen)
		out = append(out, byte(SchemeArgon2id))
		out = binary.BigEndian.AppendUint32(out, params.Time)
		out = binary.BigEndian.AppendUint32(out, params.MemoryKiB)
		out = append(out, params.Parallelism)
		out = append(out, salt...)
		return append(out, key...), nil
	default:
		return nil, fmt.Errorf("unsupported verifier scheme %s", scheme)
	}
}

// checkVerifier recomputes the digest of pin with the scheme recorded in
// stored and compares in constant time.
func checkVerifier(stored []byte, pin string) (bool, error) {
	if len(stored) == 0 {
		return false, fmt.Errorf("%w: empty verifier", ErrCorruptSecret)
	}
	raw := []byte(pin)
	defer util.WipeBytes(raw)

	switch VerifierScheme(stored[0]) {
	case SchemeSHA256:
		if len(stored) != sha256VerifierLen {
			return false, fmt.Errorf("%w: sha256 verifier has %d bytes", ErrCorruptSecret, len(stored))
		}
		sum := sha256.Sum256(raw)
		return subtle.ConstantTimeCompare(sum[:], stored[1:]) == 1, nil
	case SchemeArgon2id:
		if len(stored) != argon2VerifierLen {
			return false, fmt.Errorf("%w: argon2id verifier has %d bytes", ErrCorruptSecret, len(stored))
		}
		params := Argon2idParams{
			Time:        binary.BigEndian.Uint32(stored[1:5]),
			MemoryKiB:   binary.BigEndian.Uint32(stored[5:9]),
			Parallelism: stored[9],
			KeyLen:      32,
		}
		salt := stored[10 : 10+verifierSaltLen]
		want := stored[10+verifierSaltLen:]
		got, err := util.DeriveArgon2idKey(raw, salt, params)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrCorruptSecret, err)
		}
		defer util.WipeBytes(got)
		return subtle.ConstantTimeCompare(got, want) == 1, nil
	default:
		return false, fmt.Errorf("%w: unknown verifier scheme %d", ErrCorruptSecret, stored[0])
	}
}

// pendingDigest is the in-memory form of a PIN awaiting confirmation.
func pendingDigest(pin string) [sha256.Size]byte {
	raw := []byte(pin)
	defer util.WipeBytes(raw)
	return sha256.Sum256(raw)
}
