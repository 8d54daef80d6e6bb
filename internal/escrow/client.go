package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the single typed surface both the check-claim and redeem flows
// go through, whether the protocol runs in process (engine mode) or on a
// deployed contract (chain mode). Failures use the sentinel taxonomy in
// errors.go.
type Client interface {
	CreateClaim(ctx context.Context, req CreateClaimRequest) (CreateClaimResult, error)
	ClaimTokens(ctx context.Context, req ClaimTokensRequest) (ClaimTokensResult, error)
	GetClaimInfo(ctx context.Context, hash common.Hash) (ClaimRecord, error)
	WithdrawStuckTokens(ctx context.Context, req SweepRequest) (SweepResult, error)
}

// HealthChecker is implemented by clients with a remote dependency worth
// probing from /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type CreateClaimRequest struct {
	Sender        common.Address
	ClaimCodeHash common.Hash
	Amount        *big.Int // base units
	Recipient     common.Address
	Message       string
}

type CreateClaimResult struct {
	TxHash string // empty in engine mode
}

type ClaimTokensRequest struct {
	Claimant      common.Address
	ClaimCodeHash common.Hash
}

type ClaimTokensResult struct {
	Amount *big.Int
	TxHash string
}

type SweepRequest struct {
	Caller common.Address
	Token  common.Address
}

type SweepResult struct {
	Amount *big.Int
	TxHash string
}
