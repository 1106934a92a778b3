package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// InMemoryERC20 is a fungible ledger with the standard balance and allowance
// semantics. TransferFrom spends allowance, so a buyer approving the market
// escrow once cannot be drawn from twice.
type InMemoryERC20 struct {
	mu         sync.RWMutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewInMemoryERC20() *InMemoryERC20 {
	return &InMemoryERC20{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits freshly issued units. Used to fund accounts at boot and in
// tests.
func (t *InMemoryERC20) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balances[to]
	if bal == nil {
		bal = new(big.Int)
		t.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}

func (t *InMemoryERC20) BalanceOf(owner common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.balances[owner])
}

func (t *InMemoryERC20) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.allowances[owner][spender])
}

func (t *InMemoryERC20) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = clone(amount)
	return nil
}

func (t *InMemoryERC20) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom pulls funds on the owner's prior approval, decrementing the
// spender's allowance by the amount moved.
func (t *InMemoryERC20) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowance := t.allowances[from][spender]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (t *InMemoryERC20) move(from, to common.Address, amount *big.Int) error {
	bal := t.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	dst := t.balances[to]
	if dst == nil {
		dst = new(big.Int)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
