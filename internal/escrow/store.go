package escrow

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimStore is the persistent claim-code-hash → record table. Records are
// append-only: Create reserves a hash exactly once (first committed write
// wins, the loser gets ErrDuplicateClaim) and MarkClaimed flips the single
// mutable bit exactly once. Nothing is ever deleted.
type ClaimStore interface {
	// Get returns the record for hash, or a zero record when absent.
	Get(ctx context.Context, hash common.Hash) (ClaimRecord, error)
	// Create writes a new record. ErrDuplicateClaim if the hash is taken.
	Create(ctx context.Context, hash common.Hash, rec ClaimRecord) error
	// MarkClaimed sets Claimed on an existing record. ErrClaimNotFound if
	// absent, ErrAlreadyClaimed if the bit is already set.
	MarkClaimed(ctx context.Context, hash common.Hash) error
}

// MemoryStore keeps claims in process. Backs engine mode without Postgres
// and all the tests.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[common.Hash]ClaimRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[common.Hash]ClaimRecord)}
}

func (m *MemoryStore) Get(_ context.Context, hash common.Hash) (ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claims[hash].clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, hash common.Hash, rec ClaimRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[hash].Exists() {
		return ErrDuplicateClaim
	}
	rec.Claimed = false
	m.claims[hash] = rec.clone()
	return nil
}

func (m *MemoryStore) MarkClaimed(_ context.Context, hash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.claims[hash]
	if !ok || !rec.Exists() {
		return ErrClaimNotFound
	}
	if rec.Claimed {
		return ErrAlreadyClaimed
	}
	rec.Claimed = true
	m.claims[hash] = rec
	return nil
}
