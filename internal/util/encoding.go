package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize applies compatibility decomposition so that visually identical
// input (for example full-width digits) yields identical bytes.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
