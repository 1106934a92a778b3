// Package token models the asset collaborators the settlement engine moves
// value through: ERC-721 and ERC-1155 style NFT ledgers, ERC-20 fungible
// ledgers, and the native coin bank. The in-memory implementations carry the
// full ownership, approval and allowance semantics so that settlement flows
// exercise the same failure modes as the on-chain collaborators they stand
// in for.
package token

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NativeCoin is the payment-token value that selects native coin settlement
// instead of an ERC-20 ledger.
var NativeCoin = common.Address{}

var (
	ErrTokenAlreadyMinted    = errors.New("TokenAlreadyMinted")
	ErrUnknownToken          = errors.New("unknown token")
	ErrZeroAddress           = errors.New("zero address")
	ErrNotOwner              = errors.New("transfer from wrong owner")
	ErrNotAuthorized         = errors.New("caller is not owner nor approved")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// NFT is the single-edition ledger surface the market settles against.
type NFT interface {
	OwnerOf(tokenID *big.Int) (common.Address, error)
	TokenURI(tokenID *big.Int) (string, error)
	IsApprovedOrOwner(operator common.Address, tokenID *big.Int) bool
	TransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error
}

// MultiToken is the multi-edition ledger surface for ERC-1155 style assets.
type MultiToken interface {
	BalanceOf(owner common.Address, id *big.Int) *big.Int
	IsApprovedForAll(owner, operator common.Address) bool
	SafeTransferFrom(ctx context.Context, operator, from, to common.Address, id, amount *big.Int) error
}

// ERC20 is the fungible ledger surface used for token-denominated payments.
type ERC20 interface {
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
}

// Bank is the native coin ledger.
type Bank interface {
	Balance(addr common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Directory resolves contract addresses to live collaborator instances. It is
// the process-local stand-in for the chain address space: everything the
// engine settles against is bound here at boot.
type Directory struct {
	mu     sync.RWMutex
	nfts   map[common.Address]NFT
	multis map[common.Address]MultiToken
	erc20s map[common.Address]ERC20
}

func NewDirectory() *Directory {
	return &Directory{
		nfts:   make(map[common.Address]NFT),
		multis: make(map[common.Address]MultiToken),
		erc20s: make(map[common.Address]ERC20),
	}
}

func (d *Directory) AddNFT(addr common.Address, n NFT) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nfts[addr] = n
}

func (d *Directory) AddMultiToken(addr common.Address, m MultiToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.multis[addr] = m
}

func (d *Directory) AddERC20(addr common.Address, t ERC20) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.erc20s[addr] = t
}

func (d *Directory) NFT(addr common.Address) (NFT, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nfts[addr]
	return n, ok
}

func (d *Directory) MultiToken(addr common.Address) (MultiToken, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.multis[addr]
	return m, ok
}

func (d *Directory) ERC20(addr common.Address) (ERC20, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.erc20s[addr]
	return t, ok
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
