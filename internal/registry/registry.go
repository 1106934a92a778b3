// Package registry implements the authorization oracle the market and the
// collections defer to: who the trusted off-chain verifier is, which single
// market and minter instance are currently live, which NFT contracts and
// payment tokens are supported, and which authority signatures have already
// been consumed. Every privileged caller re-reads this state on every call,
// so swapping the market or minter takes effect immediately and retroactively.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

var (
	ErrInvalidVerifier = errors.New("InvalidVerifier")
	ErrUnauthorized    = errors.New("Unauthorized")
	ErrNotRegistered   = errors.New("contract not registered")
)

// Config seeds the oracle at boot. The admin is the only address allowed to
// mutate registry state afterwards.
type Config struct {
	Admin    common.Address
	Verifier common.Address
	Treasury common.Address
}

type nftEntry struct {
	assetType uint16
	erc1155   bool
}

// Registry is safe for concurrent use: reads take a shared lock, mutations an
// exclusive one, and consumed-signature tracking delegates to the ledger.
type Registry struct {
	ledger store.Ledger

	mu       sync.RWMutex
	admin    common.Address
	verifier common.Address
	treasury common.Address
	market   common.Address
	minter   common.Address
	nfts     map[common.Address]nftEntry
	payments map[common.Address]bool
}

func New(ledger store.Ledger, cfg Config) *Registry {
	return &Registry{
		ledger:   ledger,
		admin:    cfg.Admin,
		verifier: cfg.Verifier,
		treasury: cfg.Treasury,
		nfts:     make(map[common.Address]nftEntry),
		payments: make(map[common.Address]bool),
	}
}

// ConsumptionKey identifies the exact (message, signature) pair in the
// consumed-signature ledger.
func ConsumptionKey(digest common.Hash, sig []byte) common.Hash {
	return crypto.Keccak256Hash(digest.Bytes(), sig)
}

// Verify checks that sig is the verifier's signature over digest and that the
// exact pair has not been consumed before. Any failure, including a malformed
// signature, surfaces as ErrInvalidVerifier.
func (r *Registry) Verify(ctx context.Context, digest common.Hash, sig []byte) error {
	signer, err := vouchers.RecoverSigner(digest, sig)
	if err != nil {
		return ErrInvalidVerifier
	}

	r.mu.RLock()
	verifier := r.verifier
	r.mu.RUnlock()
	if signer != verifier {
		return ErrInvalidVerifier
	}

	consumed, err := r.ledger.IsSignatureConsumed(ctx, ConsumptionKey(digest, sig))
	if err != nil {
		return err
	}
	if consumed {
		return ErrInvalidVerifier
	}
	return nil
}

// Consume burns the (digest, signature) pair. Callers settle this after their
// own irreversible step succeeds; the ledger rejects double consumption.
func (r *Registry) Consume(ctx context.Context, digest common.Hash, sig []byte) error {
	return r.ledger.ConsumeSignature(ctx, ConsumptionKey(digest, sig))
}

func (r *Registry) Admin() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

func (r *Registry) Verifier() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verifier
}

func (r *Registry) Treasury() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.treasury
}

func (r *Registry) Market() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.market
}

func (r *Registry) Minter() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minter
}

// IsMarket reports whether addr is the currently registered market. A
// superseded market instance calling in gets false, never a cached yes.
func (r *Registry) IsMarket(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return addr != (common.Address{}) && addr == r.market
}

func (r *Registry) IsMinter(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return addr != (common.Address{}) && addr == r.minter
}

func (r *Registry) IsSupportedNFT(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nfts[addr]
	return ok
}

// NFTAssetType returns the registered asset type code for a contract.
func (r *Registry) NFTAssetType(addr common.Address) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.nfts[addr]
	return entry.assetType, ok
}

func (r *Registry) IsERC1155(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nfts[addr].erc1155
}

func (r *Registry) IsSupportedPayment(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.payments[addr]
}

func (r *Registry) RegisterNFTContract(caller, addr common.Address, assetType uint16, isERC1155 bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.nfts[addr] = nftEntry{assetType: assetType, erc1155: isERC1155}
	logger.Info("registered NFT contract",
		zap.String("contract", addr.Hex()),
		zap.Uint16("asset_type", assetType),
		zap.Bool("erc1155", isERC1155))
	return nil
}

// UnregisterNFTContract removes a contract. The asset type code must match
// the registered entry. Takes effect immediately, including for in-flight
// settlement attempts.
func (r *Registry) UnregisterNFTContract(caller, addr common.Address, assetType uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	entry, ok := r.nfts[addr]
	if !ok || entry.assetType != assetType {
		return ErrNotRegistered
	}
	delete(r.nfts, addr)
	logger.Info("unregistered NFT contract", zap.String("contract", addr.Hex()))
	return nil
}

func (r *Registry) RegisterPaymentToken(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.payments[addr] = true
	logger.Info("registered payment token", zap.String("token", addr.Hex()))
	return nil
}

func (r *Registry) UnregisterPaymentToken(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	if !r.payments[addr] {
		return ErrNotRegistered
	}
	delete(r.payments, addr)
	logger.Info("unregistered payment token", zap.String("token", addr.Hex()))
	return nil
}

// UpdateMarket swaps the single live market. The previous holder loses its
// privileges on its very next call.
func (r *Registry) UpdateMarket(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	previous := r.market
	r.market = addr
	logger.Info("market updated",
		zap.String("previous", previous.Hex()),
		zap.String("current", addr.Hex()))
	return nil
}

func (r *Registry) UpdateMinter(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	previous := r.minter
	r.minter = addr
	logger.Info("minter updated",
		zap.String("previous", previous.Hex()),
		zap.String("current", addr.Hex()))
	return nil
}

func (r *Registry) UpdateVerifier(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	if addr == (common.Address{}) {
		return errors.New("verifier cannot be the zero address")
	}
	r.verifier = addr
	logger.Info("verifier updated", zap.String("verifier", addr.Hex()))
	return nil
}

func (r *Registry) UpdateTreasury(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	if addr == (common.Address{}) {
		return errors.New("treasury cannot be the zero address")
	}
	r.treasury = addr
	logger.Info("treasury updated", zap.String("treasury", addr.Hex()))
	return nil
}

func (r *Registry) UpdateAdmin(caller, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return ErrUnauthorized
	}
	if addr == (common.Address{}) {
		return errors.New("admin cannot be the zero address")
	}
	r.admin = addr
	logger.Info("admin updated", zap.String("admin", addr.Hex()))
	return nil
}
