// Package claimcode generates and validates the short shareable secrets that
// key escrowed claims, and derives the on-chain lookup hash from them. The
// plaintext code is never stored server-side or on-chain.
package claimcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// CodeLength is fixed at 8 over a 36-symbol alphabet: 36^8 (~2.8e12)
	// possible codes. Adequate at expected volumes; a tunable, not a
	// cryptographic guarantee.
	CodeLength = 8

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalidFormat = errors.New("claim code must be 8 characters of A-Z or 0-9")

// Generate returns a new claim code sampled uniformly from the alphabet
// using crypto/rand.
func Generate() (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Normalize trims surrounding whitespace and uppercases a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that code normalizes to exactly CodeLength characters of
// [A-Z0-9]. Anything else is ErrInvalidFormat.
func Validate(code string) error {
	code = Normalize(code)
	if len(code) != CodeLength {
		return ErrInvalidFormat
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ErrInvalidFormat
		}
	}
	return nil
}

// Hash derives the on-chain lookup key: keccak-256 over the UTF-8 bytes of
// the normalized code. One-way, so public ledger data does not let an
// observer enumerate live codes.
func Hash(code string) (common.Hash, error) {
	if err := Validate(code); err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte(Normalize(code))), nil
}
