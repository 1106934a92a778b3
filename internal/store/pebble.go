package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

const (
	canceledPrefix   = "canceled/"
	signaturePrefix  = "sig/"
	settlementPrefix = "settlement/"
)

// Pebble is the embedded durable Ledger. Compare-and-set is a read-then-write
// under a single writer mutex; every write that matters for replay protection
// commits with a WAL sync before the call returns.
type Pebble struct {
	db *pebble.DB
	mu sync.Mutex
}

func OpenPebble(path string) (*Pebble, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20),
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 2,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", path, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *Pebble) CancelSale(ctx context.Context, saleID string) error {
	key := []byte(canceledPrefix + saleID)

	p.mu.Lock()
	defer p.mu.Unlock()
	exists, err := p.has(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyCanceled
	}
	return p.db.Set(key, []byte{1}, pebble.Sync)
}

func (p *Pebble) IsSaleCanceled(ctx context.Context, saleID string) (bool, error) {
	return p.has([]byte(canceledPrefix + saleID))
}

func (p *Pebble) ConsumeSignature(ctx context.Context, key common.Hash) error {
	k := signatureKey(key)

	p.mu.Lock()
	defer p.mu.Unlock()
	exists, err := p.has(k)
	if err != nil {
		return err
	}
	if exists {
		return ErrSignatureConsumed
	}
	return p.db.Set(k, []byte{1}, pebble.Sync)
}

func (p *Pebble) IsSignatureConsumed(ctx context.Context, key common.Hash) (bool, error) {
	return p.has(signatureKey(key))
}

func (p *Pebble) RecordSettlement(ctx context.Context, rec *Settlement, sigKeys ...common.Hash) error {
	recKey := []byte(settlementPrefix + rec.SaleID)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode settlement %s: %w", rec.SaleID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	exists, err := p.has(recKey)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSale
	}
	for _, sig := range sigKeys {
		used, err := p.has(signatureKey(sig))
		if err != nil {
			return err
		}
		if used {
			return ErrSignatureConsumed
		}
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(recKey, value, nil); err != nil {
		return err
	}
	for _, sig := range sigKeys {
		if err := batch.Set(signatureKey(sig), []byte{1}, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *Pebble) GetSettlement(ctx context.Context, saleID string) (*Settlement, error) {
	value, closer, err := p.db.Get([]byte(settlementPrefix + saleID))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	rec := new(Settlement)
	if err := json.Unmarshal(value, rec); err != nil {
		return nil, fmt.Errorf("decode settlement %s: %w", saleID, err)
	}
	return rec, nil
}

func (p *Pebble) ListSettlements(ctx context.Context, limit, offset int) ([]*Settlement, error) {
	prefix := []byte(settlementPrefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var all []*Settlement
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		rec := new(Settlement)
		if err := json.Unmarshal(value, rec); err != nil {
			return nil, fmt.Errorf("decode settlement %s: %w", iter.Key(), err)
		}
		all = append(all, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].SettledAt.Equal(all[j].SettledAt) {
			return all[i].SettledAt.After(all[j].SettledAt)
		}
		return all[i].SaleID > all[j].SaleID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

func signatureKey(h common.Hash) []byte {
	return append([]byte(signaturePrefix), h.Hex()...)
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}
	return nil
}
