package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol is the claim state machine: ABSENT → PENDING → CLAIMED, terminal.
// It owns the claim table and the escrow custody ledger and serializes every
// state-changing entry point behind one mutex, standing in for the chain's
// total ordering. Each operation either fully applies (token move plus
// record write) or leaves no trace.
type Protocol struct {
	mu     sync.Mutex
	store  ClaimStore
	ledger Ledger
	sink   Sink

	owner common.Address
}

func NewProtocol(store ClaimStore, ledger Ledger, owner common.Address, sink Sink) *Protocol {
	if sink == nil {
		sink = MultiSink{}
	}
	return &Protocol{store: store, ledger: ledger, owner: owner, sink: sink}
}

// Owner returns the administrative account entitled to sweep stuck tokens.
func (p *Protocol) Owner() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner
}

// TransferOwnership hands the administrative capability to newOwner.
func (p *Protocol) TransferOwnership(caller, newOwner common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.owner {
		return ErrNotOwner
	}
	p.owner = newOwner
	return nil
}

// CreateClaim escrows amount from caller against hash. The pull happens
// before the record write; a failed pull creates nothing, and a lost
// create race refunds the pull so neither side observes partial state.
func (p *Protocol) CreateClaim(ctx context.Context, caller common.Address, hash common.Hash, amount *big.Int, recipient common.Address, message string) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.store.Get(ctx, hash)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}
	if existing.Exists() {
		return ErrDuplicateClaim
	}

	if err := p.ledger.TransferIn(ctx, caller, amount); err != nil {
		return err
	}

	rec := ClaimRecord{
		Amount:    new(big.Int).Set(amount),
		Recipient: recipient,
		Claimed:   false,
		Message:   message,
		Sender:    caller,
	}
	if err := p.store.Create(ctx, hash, rec); err != nil {
		// Another writer committed first (shared store, other replica).
		// Return the pulled tokens before surfacing the failure.
		if refundErr := p.ledger.TransferOut(ctx, caller, amount); refundErr != nil {
			return fmt.Errorf("create claim failed (%w) and refund failed: %v", err, refundErr)
		}
		return err
	}

	p.sink.Emit(ctx, newEvent(EventClaimCreated, hash, amount, recipient, caller))
	return nil
}

// ClaimTokens pays the escrowed amount out to caller, who must be the bound
// recipient. The payout happens before the claimed flip: a failed payout
// leaves the record PENDING, never silently consumed.
func (p *Protocol) ClaimTokens(ctx context.Context, caller common.Address, hash common.Hash) (ClaimRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.store.Get(ctx, hash)
	if err != nil {
		return ClaimRecord{}, fmt.Errorf("load claim: %w", err)
	}
	if !rec.Exists() {
		return ClaimRecord{}, ErrClaimNotFound
	}
	if caller != rec.Recipient {
		return ClaimRecord{}, ErrNotRecipient
	}
	if rec.Claimed {
		return ClaimRecord{}, ErrAlreadyClaimed
	}

	if err := p.ledger.TransferOut(ctx, rec.Recipient, rec.Amount); err != nil {
		return ClaimRecord{}, err
	}
	if err := p.store.MarkClaimed(ctx, hash); err != nil {
		// Unreachable while this mutex serializes all writers to the
		// store; surfaced loudly because it means custody and the
		// record table have diverged.
		return ClaimRecord{}, fmt.Errorf("mark claimed after payout: %w", err)
	}

	rec.Claimed = true
	p.sink.Emit(ctx, newEvent(EventClaimed, hash, rec.Amount, rec.Recipient, rec.Sender))
	return rec, nil
}

// GetClaimInfo returns the record for hash, or the zero record when absent.
// Read-only; never mutates state.
func (p *Protocol) GetClaimInfo(ctx context.Context, hash common.Hash) (ClaimRecord, error) {
	return p.store.Get(ctx, hash)
}

// WithdrawStuckTokens sweeps the escrow's whole balance in the given token
// ledger to the owner. A blunt recovery instrument, not a per-claim cancel;
// only the owner may invoke it.
func (p *Protocol) WithdrawStuckTokens(ctx context.Context, caller common.Address, token Ledger) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return nil, ErrNotOwner
	}
	amount, err := token.Sweep(ctx, p.owner)
	if err != nil {
		return nil, err
	}
	return amount, nil
}
