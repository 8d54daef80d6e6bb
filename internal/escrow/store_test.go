package escrow

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec, err := store.Get(ctx, hashOf("MISSING0"))
	require.NoError(t, err)
	assert.False(t, rec.Exists())
	assert.Nil(t, rec.Amount)
}

func TestMemoryStoreCreateAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := hashOf("ABCD1234")

	rec := ClaimRecord{
		Amount:    big.NewInt(42),
		Recipient: recipAddr,
		Message:   "hi",
		Sender:    senderAddr,
	}
	require.NoError(t, store.Create(ctx, hash, rec))

	err := store.Create(ctx, hash, ClaimRecord{Amount: big.NewInt(7), Sender: thirdAddr})
	assert.ErrorIs(t, err, ErrDuplicateClaim)

	got, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(42).Cmp(got.Amount))
	assert.Equal(t, senderAddr, got.Sender)
}

func TestMemoryStoreNoAliasing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := hashOf("ABCD1234")

	amount := big.NewInt(42)
	require.NoError(t, store.Create(ctx, hash, ClaimRecord{Amount: amount, Recipient: recipAddr, Sender: senderAddr}))

	// Mutating the caller's big.Int must not reach stored state.
	amount.SetInt64(1)
	got, _ := store.Get(ctx, hash)
	assert.Zero(t, big.NewInt(42).Cmp(got.Amount))

	// Nor mutating what Get handed out.
	got.Amount.SetInt64(99)
	again, _ := store.Get(ctx, hash)
	assert.Zero(t, big.NewInt(42).Cmp(again.Amount))
}

func TestMemoryStoreMarkClaimed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := hashOf("ABCD1234")

	err := store.MarkClaimed(ctx, hash)
	assert.ErrorIs(t, err, ErrClaimNotFound)

	require.NoError(t, store.Create(ctx, hash, ClaimRecord{Amount: big.NewInt(5), Recipient: recipAddr, Sender: senderAddr}))
	require.NoError(t, store.MarkClaimed(ctx, hash))

	got, _ := store.Get(ctx, hash)
	assert.True(t, got.Claimed)

	err = store.MarkClaimed(ctx, hash)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestMemoryStoreCreateClearsClaimedFlag(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := hashOf("ABCD1234")

	// A caller cannot smuggle in a pre-claimed record.
	require.NoError(t, store.Create(ctx, hash, ClaimRecord{Amount: big.NewInt(5), Claimed: true, Recipient: recipAddr}))
	got, _ := store.Get(ctx, hash)
	assert.False(t, got.Claimed)
}
