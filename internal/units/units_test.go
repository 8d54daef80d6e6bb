package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	five := new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

	got, err := Parse("5", 18)
	require.NoError(t, err)
	assert.Zero(t, five.Cmp(got))

	got, err = Parse("0.25", 2)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(25).Cmp(got))

	got, err = Parse(".5", 1)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(5).Cmp(got))

	got, err = Parse("10", 0)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(10).Cmp(got))
}

func TestParseRejects(t *testing.T) {
	for _, bad := range []string{"", "-1", "1.2.3", "abc", "1e18", " "} {
		_, err := Parse(bad, 18)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", bad)
	}

	// More precision than the token carries is an error, not a truncation.
	_, err := Parse("0.123", 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormat(t *testing.T) {
	five := new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assert.Equal(t, "5", Format(five, 18))
	assert.Equal(t, "0.25", Format(big.NewInt(25), 2))
	assert.Equal(t, "0.05", Format(big.NewInt(5), 2))
	assert.Equal(t, "10", Format(big.NewInt(10), 0))
	assert.Equal(t, "0", Format(nil, 18))
	assert.Equal(t, "0", Format(big.NewInt(0), 18))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "5", "10", "0.5", "1234.000000000000000001"} {
		v, err := Parse(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, Format(v, 18))
	}
}
