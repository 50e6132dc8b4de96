package regnr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	for _, in := range []string{"ab12345", "AB 12345", "AB12345", " a b 1 2 3 4 5 ", "Ab\t12345"} {
		assert.Equal(t, "AB12345", Normalize(in), "input %q", in)
	}
}

func TestValid(t *testing.T) {
	valid := []string{"AB12345", "ab12345", "AB 12345", "ZZ00000"}
	for _, in := range valid {
		assert.True(t, Valid(in), "expected %q to be valid", in)
	}

	invalid := []string{
		"",
		"AB1234",    // too short
		"AB123456",  // too long
		"A112345",   // digit in letter position
		"ABC1234",   // letter in digit position
		"AB1234X",   // trailing letter
		"12AB345",   // swapped
		"ÆØ12345",   // non-ASCII letters
		"AB-12345",  // punctuation
		"AB１２３４５", // full-width digits
	}
	for _, in := range invalid {
		assert.False(t, Valid(in), "expected %q to be invalid", in)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("ab 12345")
	require.NoError(t, err)
	assert.Equal(t, "AB12345", got)

	_, err = Parse("nope")
	assert.ErrorIs(t, err, ErrInvalid)
}
