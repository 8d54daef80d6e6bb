package escrow

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// LocalClient serves the Client interface from an in-process Protocol:
// engine mode, where this service is the authoritative serialized ledger.
// Token ledgers are registered by address so the sweep operation can name
// its target the way the contract call does.
type LocalClient struct {
	engine *Protocol
	tokens map[common.Address]Ledger
}

func NewLocalClient(engine *Protocol, tokens map[common.Address]Ledger) *LocalClient {
	if tokens == nil {
		tokens = make(map[common.Address]Ledger)
	}
	return &LocalClient{engine: engine, tokens: tokens}
}

func (c *LocalClient) CreateClaim(ctx context.Context, req CreateClaimRequest) (CreateClaimResult, error) {
	err := c.engine.CreateClaim(ctx, req.Sender, req.ClaimCodeHash, req.Amount, req.Recipient, req.Message)
	return CreateClaimResult{}, err
}

func (c *LocalClient) ClaimTokens(ctx context.Context, req ClaimTokensRequest) (ClaimTokensResult, error) {
	rec, err := c.engine.ClaimTokens(ctx, req.Claimant, req.ClaimCodeHash)
	if err != nil {
		return ClaimTokensResult{}, err
	}
	return ClaimTokensResult{Amount: rec.Amount}, nil
}

func (c *LocalClient) GetClaimInfo(ctx context.Context, hash common.Hash) (ClaimRecord, error) {
	return c.engine.GetClaimInfo(ctx, hash)
}

func (c *LocalClient) WithdrawStuckTokens(ctx context.Context, req SweepRequest) (SweepResult, error) {
	token, ok := c.tokens[req.Token]
	if !ok {
		return SweepResult{}, fmt.Errorf("unknown token %s", req.Token.Hex())
	}
	amount, err := c.engine.WithdrawStuckTokens(ctx, req.Caller, token)
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{Amount: amount}, nil
}
