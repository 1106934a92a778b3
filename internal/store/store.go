// Package store persists the settlement engine's append-only ledgers: the
// cancellation set, the consumed-signature set and the settlement records.
// The ledgers are the serialization point for concurrent settlement attempts,
// so every insert is compare-and-set: the first writer wins and every later
// writer observes a typed conflict error. Entries are never rewound.
package store

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyCanceled   = errors.New("sale already canceled")
	ErrSignatureConsumed = errors.New("signature already consumed")
	ErrDuplicateSale     = errors.New("sale already settled")
)

// Settlement is the durable record of one completed trade.
type Settlement struct {
	SaleID          string         `json:"sale_id"`
	TradeType       string         `json:"trade_type"`
	Buyer           common.Address `json:"buyer"`
	Seller          common.Address `json:"seller"`
	PaymentReceiver common.Address `json:"payment_receiver"`
	NFTContract     common.Address `json:"nft_contract"`
	TokenID         *big.Int       `json:"token_id"`
	PaymentToken    common.Address `json:"payment_token"`
	Amount          *big.Int       `json:"amount"`
	Price           *big.Int       `json:"price"`
	Fee             *big.Int       `json:"fee"`
	Payout          *big.Int       `json:"payout"`
	SettledAt       time.Time      `json:"settled_at"`
}

// Ledger is the persistence surface behind the market and the registry.
//
// RecordSettlement must apply the settlement insert and the signature
// consumptions in one commit: either the sale is recorded with its
// signatures burned, or nothing changed.
type Ledger interface {
	// Cancellation set. CancelSale fails with ErrAlreadyCanceled on replay.
	CancelSale(ctx context.Context, saleID string) error
	IsSaleCanceled(ctx context.Context, saleID string) (bool, error)

	// Consumed-signature set, keyed by a digest of the exact
	// (message, signature) pair.
	ConsumeSignature(ctx context.Context, key common.Hash) error
	IsSignatureConsumed(ctx context.Context, key common.Hash) (bool, error)

	// Settlement records, at most one per sale id.
	RecordSettlement(ctx context.Context, rec *Settlement, sigKeys ...common.Hash) error
	GetSettlement(ctx context.Context, saleID string) (*Settlement, error)
	ListSettlements(ctx context.Context, limit, offset int) ([]*Settlement, error)

	Close() error
}

// KeyedMutex serializes settlement attempts that share a sale id. Entries are
// reference counted and removed once the last holder unlocks, so the lock
// table does not grow with the number of sales seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is held and returns the matching unlock.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
