package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// InMemoryNFT is an ERC-721 style ownership ledger: one owner per token id,
// per-token approvals and per-owner operator approvals.
type InMemoryNFT struct {
	mu        sync.RWMutex
	owners    map[string]common.Address
	approved  map[string]common.Address
	operators map[common.Address]map[common.Address]bool
	balances  map[common.Address]uint64
	uris      map[string]string
}

func NewInMemoryNFT() *InMemoryNFT {
	return &InMemoryNFT{
		owners:    make(map[string]common.Address),
		approved:  make(map[string]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
		balances:  make(map[common.Address]uint64),
		uris:      make(map[string]string),
	}
}

// Mint records a brand new token. A token id can be minted at most once over
// the lifetime of the ledger.
func (n *InMemoryNFT) Mint(ctx context.Context, to common.Address, tokenID *big.Int, uri string) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return ErrUnknownToken
	}
	key := tokenID.String()

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.owners[key]; exists {
		return ErrTokenAlreadyMinted
	}
	n.owners[key] = to
	n.uris[key] = uri
	n.balances[to]++
	return nil
}

func (n *InMemoryNFT) Exists(tokenID *big.Int) bool {
	if tokenID == nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.owners[tokenID.String()]
	return ok
}

func (n *InMemoryNFT) OwnerOf(tokenID *big.Int) (common.Address, error) {
	if tokenID == nil {
		return common.Address{}, ErrUnknownToken
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[tokenID.String()]
	if !ok {
		return common.Address{}, ErrUnknownToken
	}
	return owner, nil
}

func (n *InMemoryNFT) TokenURI(tokenID *big.Int) (string, error) {
	if tokenID == nil {
		return "", ErrUnknownToken
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	uri, ok := n.uris[tokenID.String()]
	if !ok {
		return "", ErrUnknownToken
	}
	return uri, nil
}

func (n *InMemoryNFT) BalanceOf(owner common.Address) uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.balances[owner]
}

// Approve grants a single-token transfer approval. The caller must be the
// owner or one of the owner's operators.
func (n *InMemoryNFT) Approve(ctx context.Context, caller, to common.Address, tokenID *big.Int) error {
	if tokenID == nil {
		return ErrUnknownToken
	}
	key := tokenID.String()

	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[key]
	if !ok {
		return ErrUnknownToken
	}
	if caller != owner && !n.operators[owner][caller] {
		return ErrNotAuthorized
	}
	n.approved[key] = to
	return nil
}

func (n *InMemoryNFT) SetApprovalForAll(ctx context.Context, owner, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if approved {
		if n.operators[owner] == nil {
			n.operators[owner] = make(map[common.Address]bool)
		}
		n.operators[owner][operator] = true
		return nil
	}
	delete(n.operators[owner], operator)
	return nil
}

func (n *InMemoryNFT) IsApprovedForAll(owner, operator common.Address) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.operators[owner][operator]
}

func (n *InMemoryNFT) IsApprovedOrOwner(operator common.Address, tokenID *big.Int) bool {
	if tokenID == nil {
		return false
	}
	key := tokenID.String()

	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[key]
	if !ok {
		return false
	}
	return operator == owner || n.approved[key] == operator || n.operators[owner][operator]
}

// TransferFrom moves a token and clears its single-token approval. The
// operator must be the owner, the approved address for the token, or an
// operator of the owner.
func (n *InMemoryNFT) TransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if tokenID == nil {
		return ErrUnknownToken
	}
	key := tokenID.String()

	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[key]
	if !ok {
		return ErrUnknownToken
	}
	if owner != from {
		return ErrNotOwner
	}
	if operator != owner && n.approved[key] != operator && !n.operators[owner][operator] {
		return ErrNotAuthorized
	}
	delete(n.approved, key)
	n.owners[key] = to
	n.balances[from]--
	n.balances[to]++
	return nil
}
