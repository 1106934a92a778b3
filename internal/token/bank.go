package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// InMemoryBank is the native coin ledger. Accounts are funded with Deposit
// and value only moves with Transfer; there is no allowance layer because
// native payments travel with the call itself.
type InMemoryBank struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

func NewInMemoryBank() *InMemoryBank {
	return &InMemoryBank{balances: make(map[common.Address]*big.Int)}
}

func (b *InMemoryBank) Deposit(addr common.Address, amount *big.Int) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[addr]
	if bal == nil {
		bal = new(big.Int)
		b.balances[addr] = bal
	}
	bal.Add(bal, amount)
	return nil
}

func (b *InMemoryBank) Balance(addr common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return clone(b.balances[addr])
}

func (b *InMemoryBank) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	dst := b.balances[to]
	if dst == nil {
		dst = new(big.Int)
		b.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
