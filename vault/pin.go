package vault

import (
	"fmt"
	"unicode/utf8"

	"github.com/jmcleod/pinvault/internal/util"
)

// PINPolicy restricts which PINs may be set. The zero value accepts any PIN.
// It is never applied to verification, so a policy change cannot lock out an
// existing PIN.
type PINPolicy struct {
	MinLength  int
	MaxLength  int // zero means no upper bound
	DigitsOnly bool
}

// NumericPINPolicy accepts PINs of min to max decimal digits.
func NumericPINPolicy(min, max int) PINPolicy {
	return PINPolicy{MinLength: min, MaxLength: max, DigitsOnly: true}
}

// Validate checks a normalized PIN against the policy.
func (p PINPolicy) Validate(pin string) error {
	n := utf8.RuneCountInString(pin)
	if n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPIN, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidPIN, p.MaxLength)
	}
	if p.DigitsOnly {
		for _, r := range pin {
			if r < '0' || r > '9' {
				return fmt.Errorf("%w: must contain only digits", ErrInvalidPIN)
			}
		}
	}
	return nil
}

func normalizePIN(pin string) string {
	return util.Normalize(pin)
}
