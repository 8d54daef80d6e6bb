// Package claimmeta stores display metadata for pending claims: usernames,
// compatibility match data, a human-readable amount. It is convenience data
// for the client UI, not part of the cryptographic guarantee — redemption
// must work with this store down or empty. Records are keyed by the claim
// code hash so the plaintext code is never persisted server-side.
package claimmeta

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is what the sender's client attaches when it creates a claim.
type Record struct {
	SenderAddress     string          `json:"senderAddress"`
	SenderUsername    string          `json:"senderUsername"`
	RecipientUsername string          `json:"recipientUsername"`
	DisplayAmount     string          `json:"displayAmount"`
	MatchData         json.RawMessage `json:"matchData,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Store is the metadata side-channel. Get returns nil, nil for unknown
// hashes.
type Store interface {
	Save(ctx context.Context, hash common.Hash, rec Record) error
	Get(ctx context.Context, hash common.Hash) (*Record, error)
}

// MemoryStore backs tests and redis-less deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[common.Hash]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[common.Hash]Record)}
}

func (m *MemoryStore) Save(_ context.Context, hash common.Hash, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[hash] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, hash common.Hash) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[hash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
