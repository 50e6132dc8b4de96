// Package regnr normalises and validates Norwegian vehicle registration
// numbers (two letters followed by five digits).
package regnr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Length is the fixed length of a normalised registration number.
const Length = 7

// Placeholder is a well-formed number used when only the credential is
// being exercised.
const Placeholder = "AA00000"

// ErrInvalid is returned by Parse for input that does not match the shape.
var ErrInvalid = errors.New("invalid registration number")

var pattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{5}$`)

// Normalize uppercases s and strips all whitespace.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// Valid reports whether s is a well-formed registration number once
// normalised.
func Valid(s string) bool {
	return pattern.MatchString(Normalize(s))
}

// Parse normalises s and returns it if it is well-formed.
func Parse(s string) (string, error) {
	n := Normalize(s)
	if !pattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return n, nil
}
