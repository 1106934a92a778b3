package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory is the in-process Ledger used by tests and single-node deployments
// that do not need durability.
type Memory struct {
	mu          sync.RWMutex
	canceled    map[string]struct{}
	consumed    map[common.Hash]struct{}
	settlements map[string]*Settlement
	order       []string
}

func NewMemory() *Memory {
	return &Memory{
		canceled:    make(map[string]struct{}),
		consumed:    make(map[common.Hash]struct{}),
		settlements: make(map[string]*Settlement),
	}
}

func (m *Memory) CancelSale(ctx context.Context, saleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.canceled[saleID]; ok {
		return ErrAlreadyCanceled
	}
	m.canceled[saleID] = struct{}{}
	return nil
}

func (m *Memory) IsSaleCanceled(ctx context.Context, saleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.canceled[saleID]
	return ok, nil
}

func (m *Memory) ConsumeSignature(ctx context.Context, key common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeLocked(key)
}

func (m *Memory) consumeLocked(key common.Hash) error {
	if _, ok := m.consumed[key]; ok {
		return ErrSignatureConsumed
	}
	m.consumed[key] = struct{}{}
	return nil
}

func (m *Memory) IsSignatureConsumed(ctx context.Context, key common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.consumed[key]
	return ok, nil
}

func (m *Memory) RecordSettlement(ctx context.Context, rec *Settlement, sigKeys ...common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settlements[rec.SaleID]; ok {
		return ErrDuplicateSale
	}
	for _, key := range sigKeys {
		if _, ok := m.consumed[key]; ok {
			return ErrSignatureConsumed
		}
	}
	cp := *rec
	m.settlements[rec.SaleID] = &cp
	m.order = append(m.order, rec.SaleID)
	for _, key := range sigKeys {
		m.consumed[key] = struct{}{}
	}
	return nil
}

func (m *Memory) GetSettlement(ctx context.Context, saleID string) (*Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.settlements[saleID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListSettlements returns records in insertion order, newest first.
func (m *Memory) ListSettlements(ctx context.Context, limit, offset int) ([]*Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		ids = append(ids, m.order[i])
	}

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]*Settlement, 0, len(ids))
	for _, id := range ids {
		cp := *m.settlements[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
