package escrow

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger moves tokens in and out of escrow custody. TransferIn pulls amount
// from a depositor who has pre-authorized the escrow for at least that much;
// TransferOut pays custody out; Sweep drains the whole custody balance. Any
// failed move returns ErrTokenTransferFailed and leaves every balance
// untouched.
type Ledger interface {
	TransferIn(ctx context.Context, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, to common.Address, amount *big.Int) error
	Sweep(ctx context.Context, to common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
}

// MemoryLedger implements ERC-20 balance and allowance semantics in process.
// It is the custody layer for engine mode and the tests; allowances are
// granted to the escrow account only, matching the approve-then-pull flow.
type MemoryLedger struct {
	escrow common.Address

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int

	// AutoFund credits a depositor with balance and allowance on demand.
	// Engine-mode development convenience; never set in tests that assert
	// transfer failures.
	AutoFund bool
}

func NewMemoryLedger(escrow common.Address) *MemoryLedger {
	return &MemoryLedger{
		escrow:     escrow,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
}

// Mint credits addr outside the escrow flow, standing in for the token's
// own supply mechanics.
func (l *MemoryLedger) Mint(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balance(addr), amount)
}

// Approve authorizes the escrow account to pull up to amount from owner.
func (l *MemoryLedger) Approve(owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[owner] = new(big.Int).Set(amount)
}

// Allowance reports how much the escrow may still pull from owner.
func (l *MemoryLedger) Allowance(owner common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner))
}

func (l *MemoryLedger) TransferIn(_ context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrTokenTransferFailed
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.AutoFund && (l.balance(from).Cmp(amount) < 0 || l.allowance(from).Cmp(amount) < 0) {
		l.balances[from] = new(big.Int).Add(l.balance(from), amount)
		l.allowances[from] = new(big.Int).Add(l.allowance(from), amount)
	}

	if l.balance(from).Cmp(amount) < 0 || l.allowance(from).Cmp(amount) < 0 {
		return ErrTokenTransferFailed
	}

	l.balances[from] = new(big.Int).Sub(l.balance(from), amount)
	l.allowances[from] = new(big.Int).Sub(l.allowance(from), amount)
	l.balances[l.escrow] = new(big.Int).Add(l.balance(l.escrow), amount)
	return nil
}

func (l *MemoryLedger) TransferOut(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrTokenTransferFailed
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance(l.escrow).Cmp(amount) < 0 {
		return ErrTokenTransferFailed
	}
	l.balances[l.escrow] = new(big.Int).Sub(l.balance(l.escrow), amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

func (l *MemoryLedger) Sweep(_ context.Context, to common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := new(big.Int).Set(l.balance(l.escrow))
	if amount.Sign() == 0 {
		return amount, nil
	}
	l.balances[l.escrow] = big.NewInt(0)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return amount, nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(addr)), nil
}

// balance and allowance return live map entries; callers hold the mutex and
// must not retain them.
func (l *MemoryLedger) balance(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (l *MemoryLedger) allowance(owner common.Address) *big.Int {
	if a, ok := l.allowances[owner]; ok {
		return a
	}
	return big.NewInt(0)
}
