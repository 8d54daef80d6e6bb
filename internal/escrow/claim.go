package escrow

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimRecord is one escrowed transfer, keyed by the keccak hash of its
// claim code. A record whose Amount is zero does not exist; absence has no
// separate flag. Once created, everything but Claimed is immutable, and
// Claimed transitions false→true exactly once.
type ClaimRecord struct {
	Amount    *big.Int
	Recipient common.Address
	Claimed   bool
	Message   string
	Sender    common.Address
}

// Exists reports whether the record denotes a stored claim.
func (r ClaimRecord) Exists() bool {
	return r.Amount != nil && r.Amount.Sign() > 0
}

// clone returns a deep copy so callers can't alias store-internal state
// through the shared *big.Int.
func (r ClaimRecord) clone() ClaimRecord {
	out := r
	if r.Amount != nil {
		out.Amount = new(big.Int).Set(r.Amount)
	}
	return out
}
