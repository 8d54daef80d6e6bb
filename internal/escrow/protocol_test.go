package escrow

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	escrowAddr = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	senderAddr = common.HexToAddress("0x0000000000000000000000000000000000000002")
	recipAddr  = common.HexToAddress("0x0000000000000000000000000000000000000003")
	thirdAddr  = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

func hashOf(code string) common.Hash {
	return crypto.Keccak256Hash([]byte(code))
}

func newTestProtocol(t *testing.T) (*Protocol, *MemoryLedger, *MemorySink) {
	t.Helper()
	ledger := NewMemoryLedger(escrowAddr)
	sink := &MemorySink{}
	return NewProtocol(NewMemoryStore(), ledger, ownerAddr, sink), ledger, sink
}

func fund(ledger *MemoryLedger, addr common.Address, amount int64) {
	ledger.Mint(addr, big.NewInt(amount))
	ledger.Approve(addr, big.NewInt(amount))
}

func TestCreateClaimThenGetClaimInfo(t *testing.T) {
	ctx := context.Background()
	p, ledger, sink := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	err := p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, "you matched!")
	require.NoError(t, err)

	rec, err := p.GetClaimInfo(ctx, hash)
	require.NoError(t, err)
	assert.True(t, rec.Exists())
	assert.Zero(t, big.NewInt(10).Cmp(rec.Amount))
	assert.Equal(t, recipAddr, rec.Recipient)
	assert.Equal(t, senderAddr, rec.Sender)
	assert.Equal(t, "you matched!", rec.Message)
	assert.False(t, rec.Claimed)

	bal, err := ledger.BalanceOf(ctx, escrowAddr)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(10).Cmp(bal))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventClaimCreated, events[0].Type)
	assert.Equal(t, hash, events[0].ClaimCodeHash)
	assert.Equal(t, senderAddr, events[0].Sender)
	assert.Equal(t, recipAddr, events[0].Recipient)
}

func TestCreateClaimDuplicate(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, "first"))

	err := p.CreateClaim(ctx, senderAddr, hash, big.NewInt(20), thirdAddr, "second")
	assert.ErrorIs(t, err, ErrDuplicateClaim)

	// State equals state after the first call only.
	rec, err := p.GetClaimInfo(ctx, hash)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(10).Cmp(rec.Amount))
	assert.Equal(t, recipAddr, rec.Recipient)
	assert.Equal(t, "first", rec.Message)

	bal, _ := ledger.BalanceOf(ctx, escrowAddr)
	assert.Zero(t, big.NewInt(10).Cmp(bal))
}

func TestCreateClaimZeroAmount(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	err := p.CreateClaim(ctx, senderAddr, hash, big.NewInt(0), recipAddr, "nothing")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = p.CreateClaim(ctx, senderAddr, hash, nil, recipAddr, "nothing")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	rec, err := p.GetClaimInfo(ctx, hash)
	require.NoError(t, err)
	assert.False(t, rec.Exists())
}

func TestCreateClaimInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	ledger.Mint(senderAddr, big.NewInt(1000))
	ledger.Approve(senderAddr, big.NewInt(1000))

	hash := hashOf("ABCD1234")
	err := p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10000), recipAddr, "too much")
	assert.ErrorIs(t, err, ErrTokenTransferFailed)

	// No record, sender balance unchanged.
	rec, err := p.GetClaimInfo(ctx, hash)
	require.NoError(t, err)
	assert.False(t, rec.Exists())

	bal, _ := ledger.BalanceOf(ctx, senderAddr)
	assert.Zero(t, big.NewInt(1000).Cmp(bal))
}

func TestCreateClaimInsufficientAllowance(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	ledger.Mint(senderAddr, big.NewInt(1000))
	ledger.Approve(senderAddr, big.NewInt(5))

	err := p.CreateClaim(ctx, senderAddr, hashOf("ABCD1234"), big.NewInt(10), recipAddr, "")
	assert.ErrorIs(t, err, ErrTokenTransferFailed)

	bal, _ := ledger.BalanceOf(ctx, senderAddr)
	assert.Zero(t, big.NewInt(1000).Cmp(bal))
}

func TestClaimTokensHappyPath(t *testing.T) {
	ctx := context.Background()
	p, ledger, sink := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, "gift"))

	rec, err := p.ClaimTokens(ctx, recipAddr, hash)
	require.NoError(t, err)
	assert.True(t, rec.Claimed)
	assert.Zero(t, big.NewInt(10).Cmp(rec.Amount))

	recipBal, _ := ledger.BalanceOf(ctx, recipAddr)
	assert.Zero(t, big.NewInt(10).Cmp(recipBal))
	escrowBal, _ := ledger.BalanceOf(ctx, escrowAddr)
	assert.Zero(t, escrowBal.Sign())

	stored, err := p.GetClaimInfo(ctx, hash)
	require.NoError(t, err)
	assert.True(t, stored.Claimed)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventClaimed, events[1].Type)
	assert.Equal(t, recipAddr, events[1].Recipient)
}

func TestClaimTokensNotRecipient(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, ""))

	_, err := p.ClaimTokens(ctx, thirdAddr, hash)
	assert.ErrorIs(t, err, ErrNotRecipient)

	// Record remains pending, escrow still holds the funds.
	rec, _ := p.GetClaimInfo(ctx, hash)
	assert.False(t, rec.Claimed)
	escrowBal, _ := ledger.BalanceOf(ctx, escrowAddr)
	assert.Zero(t, big.NewInt(10).Cmp(escrowBal))
}

func TestClaimTokensTwice(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, ""))

	_, err := p.ClaimTokens(ctx, recipAddr, hash)
	require.NoError(t, err)

	_, err = p.ClaimTokens(ctx, recipAddr, hash)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// Paid exactly once.
	recipBal, _ := ledger.BalanceOf(ctx, recipAddr)
	assert.Zero(t, big.NewInt(10).Cmp(recipBal))

	// A third party retrying after redemption is rejected too; the
	// recipient binding is checked before the claimed flag.
	_, err = p.ClaimTokens(ctx, thirdAddr, hash)
	assert.ErrorIs(t, err, ErrNotRecipient)
}

func TestClaimTokensAbsent(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProtocol(t)

	_, err := p.ClaimTokens(ctx, recipAddr, hashOf("NOPE0000"))
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestClaimTokensFailedPayoutStaysPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ledger := NewMemoryLedger(escrowAddr)
	p := NewProtocol(store, ledger, ownerAddr, nil)
	fund(ledger, senderAddr, 1000)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, ""))

	// Drain custody behind the protocol's back (a direct transfer in the
	// real world). Payout must fail closed.
	_, err := ledger.Sweep(ctx, thirdAddr)
	require.NoError(t, err)

	_, err = p.ClaimTokens(ctx, recipAddr, hash)
	assert.ErrorIs(t, err, ErrTokenTransferFailed)

	rec, _ := p.GetClaimInfo(ctx, hash)
	assert.False(t, rec.Claimed)
}

func TestWithdrawStuckTokens(t *testing.T) {
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 1000)
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hashOf("ABCD1234"), big.NewInt(25), recipAddr, ""))

	// Non-owner is rejected, balance untouched.
	_, err := p.WithdrawStuckTokens(ctx, thirdAddr, ledger)
	assert.ErrorIs(t, err, ErrNotOwner)
	escrowBal, _ := ledger.BalanceOf(ctx, escrowAddr)
	assert.Zero(t, big.NewInt(25).Cmp(escrowBal))

	// Owner sweeps the whole custody balance.
	amount, err := p.WithdrawStuckTokens(ctx, ownerAddr, ledger)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(25).Cmp(amount))

	ownerBal, _ := ledger.BalanceOf(ctx, ownerAddr)
	assert.Zero(t, big.NewInt(25).Cmp(ownerBal))
	escrowBal, _ = ledger.BalanceOf(ctx, escrowAddr)
	assert.Zero(t, escrowBal.Sign())
}

func TestTransferOwnership(t *testing.T) {
	p, _, _ := newTestProtocol(t)

	err := p.TransferOwnership(thirdAddr, thirdAddr)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, ownerAddr, p.Owner())

	require.NoError(t, p.TransferOwnership(ownerAddr, thirdAddr))
	assert.Equal(t, thirdAddr, p.Owner())
}

func TestEndToEndScenario(t *testing.T) {
	// Sender deposits 10 with code ABCD1234; recipient claims; a third
	// party retrying the same code fails AlreadyClaimed.
	ctx := context.Background()
	p, ledger, _ := newTestProtocol(t)
	fund(ledger, senderAddr, 10)

	hash := hashOf("ABCD1234")
	require.NoError(t, p.CreateClaim(ctx, senderAddr, hash, big.NewInt(10), recipAddr, "crush"))

	senderBal, _ := ledger.BalanceOf(ctx, senderAddr)
	assert.Zero(t, senderBal.Sign())

	rec, err := p.ClaimTokens(ctx, recipAddr, hash)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(10).Cmp(rec.Amount))

	recipBal, _ := ledger.BalanceOf(ctx, recipAddr)
	assert.Zero(t, big.NewInt(10).Cmp(recipBal))

	_, err = p.ClaimTokens(ctx, recipAddr, hash)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}
