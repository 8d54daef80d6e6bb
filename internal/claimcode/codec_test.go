package claimcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		require.NoError(t, Validate(code))
		for _, c := range code {
			assert.True(t, strings.ContainsRune(alphabet, c), "unexpected character %q", c)
		}
		seen[code] = true
	}
	// 100 draws from a 36^8 space colliding down to a handful would mean a
	// broken random source.
	assert.Greater(t, len(seen), 95)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
	}{
		{"ABCD1234", true},
		{"abcd1234", true}, // normalized to uppercase
		{"  ABCD1234  ", true},
		{"00000000", true},
		{"ABCD123", false},   // 7 chars
		{"ABCD12345", false}, // 9 chars
		{"ABCD-234", false},  // punctuation
		{"ABCD 234", false},  // inner whitespace
		{"", false},
		{"ÅBCD1234", false}, // non-ASCII
	}
	for _, tc := range cases {
		err := Validate(tc.code)
		if tc.ok {
			assert.NoError(t, err, "code %q", tc.code)
		} else {
			assert.ErrorIs(t, err, ErrInvalidFormat, "code %q", tc.code)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	h1, err := Hash("ABCD1234")
	require.NoError(t, err)
	h2, err := Hash("ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Case-normalized input hashes identically.
	h3, err := Hash("abcd1234")
	require.NoError(t, err)
	assert.Equal(t, h1, h3)

	other, err := Hash("ABCD1235")
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)
}

func TestHashRejectsInvalid(t *testing.T) {
	_, err := Hash("nope")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
