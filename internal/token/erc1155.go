package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// InMemoryMultiToken is an ERC-1155 style balance ledger: every token id has
// per-address balances and approvals are operator-wide only.
type InMemoryMultiToken struct {
	mu        sync.RWMutex
	balances  map[string]map[common.Address]*big.Int
	operators map[common.Address]map[common.Address]bool
	uris      map[string]string
}

func NewInMemoryMultiToken() *InMemoryMultiToken {
	return &InMemoryMultiToken{
		balances:  make(map[string]map[common.Address]*big.Int),
		operators: make(map[common.Address]map[common.Address]bool),
		uris:      make(map[string]string),
	}
}

// Mint credits amount units of a token id. Unlike the single-edition ledger,
// minting an id that already has supply tops the balance up.
func (m *InMemoryMultiToken) Mint(ctx context.Context, to common.Address, id, amount *big.Int, uri string) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if id == nil || id.Sign() < 0 {
		return ErrUnknownToken
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	key := id.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[key] == nil {
		m.balances[key] = make(map[common.Address]*big.Int)
	}
	bal := m.balances[key][to]
	if bal == nil {
		bal = new(big.Int)
		m.balances[key][to] = bal
	}
	bal.Add(bal, amount)
	if uri != "" {
		m.uris[key] = uri
	}
	return nil
}

func (m *InMemoryMultiToken) BalanceOf(owner common.Address, id *big.Int) *big.Int {
	if id == nil {
		return new(big.Int)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.balances[id.String()][owner])
}

func (m *InMemoryMultiToken) URI(id *big.Int) (string, error) {
	if id == nil {
		return "", ErrUnknownToken
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	uri, ok := m.uris[id.String()]
	if !ok {
		return "", ErrUnknownToken
	}
	return uri, nil
}

func (m *InMemoryMultiToken) SetApprovalForAll(ctx context.Context, owner, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if approved {
		if m.operators[owner] == nil {
			m.operators[owner] = make(map[common.Address]bool)
		}
		m.operators[owner][operator] = true
		return nil
	}
	delete(m.operators[owner], operator)
	return nil
}

func (m *InMemoryMultiToken) IsApprovedForAll(owner, operator common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.operators[owner][operator]
}

// SafeTransferFrom moves amount units between addresses. The operator must be
// the sender itself or an approved operator of the sender.
func (m *InMemoryMultiToken) SafeTransferFrom(ctx context.Context, operator, from, to common.Address, id, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if id == nil {
		return ErrUnknownToken
	}
	if !positive(amount) {
		return ErrInvalidAmount
	}
	key := id.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if operator != from && !m.operators[from][operator] {
		return ErrNotAuthorized
	}
	bal := m.balances[key][from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	dst := m.balances[key][to]
	if dst == nil {
		dst = new(big.Int)
		m.balances[key][to] = dst
	}
	dst.Add(dst, amount)
	return nil
}
