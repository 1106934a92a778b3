// Package collection implements the token identity and edition namespace.
// A collection owns one slice of the packed token-id space: every mint path
// decodes the presented id, requires the collection part to match and the
// sub-collection part to name a known sub-collection with editions left, and
// only then touches the asset ledger. Sub-collections are append-only and
// their capacity never shrinks.
package collection

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/tokenid"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

var (
	ErrInvalidCollection = errors.New("InvalidCollection")
	ErrReachMaxEdition   = errors.New("ReachMaxEdition")
	ErrInvalidCreator    = errors.New("InvalidCreator")
	ErrInvalidTokenIds   = errors.New("InvalidTokenIds")
	ErrLengthMismatch    = errors.New("token ids and uris length mismatch")
)

// Oracle is the slice of the registry a collection consults.
type Oracle interface {
	Verify(ctx context.Context, digest common.Hash, sig []byte) error
	Consume(ctx context.Context, digest common.Hash, sig []byte) error
	IsMarket(addr common.Address) bool
	IsMinter(addr common.Address) bool
}

// SubCollection is one edition range. MintedAmt only ever grows, and never
// past MaxEdition.
type SubCollection struct {
	MaxEdition uint64 `json:"max_edition"`
	MintedAmt  uint64 `json:"minted_amt"`
}

// Collection is one deployed identity namespace plus its asset ledger. It
// also exposes the single-edition ledger surface, so the market settles
// secondary trades directly against it.
type Collection struct {
	mu sync.Mutex

	address      common.Address
	admin        common.Address
	creator      common.Address
	id           *big.Int
	name         string
	baseURI      string
	oracle       Oracle
	registryAddr common.Address
	assets       *token.InMemoryNFT
	subs         map[uint64]*SubCollection
	latestSub    uint64
	emitter      events.Emitter
}

func (c *Collection) Address() common.Address { return c.address }
func (c *Collection) Creator() common.Address { return c.creator }
func (c *Collection) Admin() common.Address   { return c.admin }
func (c *Collection) Name() string            { return c.name }
func (c *Collection) BaseURI() string         { return c.baseURI }

func (c *Collection) CollectionID() *big.Int {
	return new(big.Int).Set(c.id)
}

// LatestSubCollectionID is the highest sub-collection id allocated so far.
func (c *Collection) LatestSubCollectionID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestSub
}

func (c *Collection) SubCollection(id uint64) (SubCollection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return SubCollection{}, false
	}
	return *sub, true
}

// SubCollections returns a snapshot of every sub-collection keyed by id.
func (c *Collection) SubCollections() map[uint64]SubCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]SubCollection, len(c.subs))
	for id, sub := range c.subs {
		out[id] = *sub
	}
	return out
}

func (c *Collection) RegistryAddress() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registryAddr
}

// UpdateRegistry swaps the oracle this collection defers to.
func (c *Collection) UpdateRegistry(caller common.Address, oracle Oracle, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.admin {
		return registry.ErrUnauthorized
	}
	if oracle == nil || addr == (common.Address{}) {
		return errors.New("registry cannot be nil")
	}
	c.oracle = oracle
	c.registryAddr = addr
	logger.Info("collection registry updated",
		zap.String("collection", c.address.Hex()),
		zap.String("registry", addr.Hex()))
	return nil
}

// AddSubCollection appends a fresh edition range with the next sequential id.
// Creator only; capacity must be nonzero and within the edition field width.
func (c *Collection) AddSubCollection(ctx context.Context, caller common.Address, maxEdition uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.creator {
		return 0, registry.ErrUnauthorized
	}
	if maxEdition == 0 || maxEdition > tokenid.MaxEdition {
		return 0, fmt.Errorf("max edition %d out of range", maxEdition)
	}
	if c.latestSub >= tokenid.MaxSubCollection {
		return 0, fmt.Errorf("sub-collection namespace exhausted")
	}

	c.latestSub++
	id := c.latestSub
	c.subs[id] = &SubCollection{MaxEdition: maxEdition}

	c.emitter.Emit(ctx, events.NewCollection{
		CollectionID:    c.CollectionID(),
		SubCollectionID: id,
		MaxEdition:      maxEdition,
		CollectionAddr:  c.address,
	})
	return id, nil
}

// Lazymint is the market-only redemption mint: the token is minted to the
// creator of record, then handed to the buyer in the same call, producing
// two transfer notifications.
func (c *Collection) Lazymint(ctx context.Context, caller, creatorAddr, to common.Address, tokenID *big.Int, uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.oracle.IsMarket(caller) {
		return registry.ErrUnauthorized
	}

	sub, err := c.mintableSub(tokenID)
	if err != nil {
		return err
	}
	if creatorAddr != c.creator {
		return ErrInvalidCreator
	}

	if err := c.assets.Mint(ctx, creatorAddr, tokenID, uri); err != nil {
		return err
	}
	if err := c.assets.TransferFrom(ctx, creatorAddr, creatorAddr, to, tokenID); err != nil {
		return fmt.Errorf("hand minted token to buyer: %w", err)
	}
	sub.MintedAmt++

	c.emitter.Emit(ctx, events.Transfer{NFT: c.address, From: common.Address{}, To: creatorAddr, TokenID: tokenID})
	c.emitter.Emit(ctx, events.Transfer{NFT: c.address, From: creatorAddr, To: to, TokenID: tokenID})
	return nil
}

// Mint is the eager single mint, authorized per call by an authority
// signature over (to, tokenId, uri, assetType). Callable by the creator or
// the registered minter.
func (c *Collection) Mint(ctx context.Context, caller, to common.Address, tokenID *big.Int, uri string, authoritySig []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.creator && !c.oracle.IsMinter(caller) {
		return registry.ErrUnauthorized
	}

	digest, err := (vouchers.Mint{
		To:        to,
		TokenID:   tokenID,
		URI:       uri,
		AssetType: constants.AssetTypeERC721,
	}).Digest()
	if err != nil {
		return err
	}
	if err := c.oracle.Verify(ctx, digest, authoritySig); err != nil {
		return err
	}

	sub, err := c.mintableSub(tokenID)
	if err != nil {
		return err
	}
	if c.assets.Exists(tokenID) {
		return token.ErrTokenAlreadyMinted
	}

	if err := c.oracle.Consume(ctx, digest, authoritySig); err != nil {
		return err
	}
	if err := c.assets.Mint(ctx, to, tokenID, uri); err != nil {
		return err
	}
	sub.MintedAmt++

	c.emitter.Emit(ctx, events.CollectionMintSingle{To: to, NFT: c.address, ID: tokenID})
	c.emitter.Emit(ctx, events.Transfer{NFT: c.address, From: common.Address{}, To: to, TokenID: tokenID})
	return nil
}

// MintBatch mints several editions of one sub-collection under a single
// authority signature. Either the whole batch lands or nothing does.
func (c *Collection) MintBatch(ctx context.Context, caller, to common.Address, tokenIDs []*big.Int, uris []string, authoritySig []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.creator && !c.oracle.IsMinter(caller) {
		return registry.ErrUnauthorized
	}
	if len(tokenIDs) != len(uris) {
		return ErrLengthMismatch
	}
	if len(tokenIDs) == 0 {
		return ErrInvalidTokenIds
	}

	digest, err := (vouchers.BatchMint{
		To:        to,
		TokenIDs:  tokenIDs,
		URIs:      uris,
		AssetType: constants.AssetTypeERC721,
	}).Digest()
	if err != nil {
		return err
	}
	if err := c.oracle.Verify(ctx, digest, authoritySig); err != nil {
		return err
	}

	firstSubID := tokenid.Decode(tokenIDs[0]).SubCollection
	seen := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		decoded := tokenid.Decode(id)
		if decoded.Collection.Cmp(c.id) != 0 {
			return ErrInvalidCollection
		}
		if decoded.SubCollection != firstSubID {
			return ErrInvalidTokenIds
		}
		key := id.String()
		if _, dup := seen[key]; dup {
			return token.ErrTokenAlreadyMinted
		}
		seen[key] = struct{}{}
		if c.assets.Exists(id) {
			return token.ErrTokenAlreadyMinted
		}
	}
	sub, ok := c.subs[firstSubID]
	if !ok || sub.MintedAmt+uint64(len(tokenIDs)) > sub.MaxEdition {
		return ErrReachMaxEdition
	}

	if err := c.oracle.Consume(ctx, digest, authoritySig); err != nil {
		return err
	}
	for i, id := range tokenIDs {
		if err := c.assets.Mint(ctx, to, id, uris[i]); err != nil {
			return err
		}
	}
	sub.MintedAmt += uint64(len(tokenIDs))

	c.emitter.Emit(ctx, events.CollectionMintBatch{To: to, NFT: c.address, IDs: tokenIDs})
	for _, id := range tokenIDs {
		c.emitter.Emit(ctx, events.Transfer{NFT: c.address, From: common.Address{}, To: to, TokenID: id})
	}
	return nil
}

// mintableSub runs the namespace gate shared by every mint path. The caller
// holds c.mu.
func (c *Collection) mintableSub(tokenID *big.Int) (*SubCollection, error) {
	decoded := tokenid.Decode(tokenID)
	if decoded.Collection.Cmp(c.id) != 0 {
		return nil, ErrInvalidCollection
	}
	sub, ok := c.subs[decoded.SubCollection]
	if !ok || sub.MintedAmt >= sub.MaxEdition {
		return nil, ErrReachMaxEdition
	}
	return sub, nil
}

// Single-edition ledger surface, delegated to the embedded asset ledger.

func (c *Collection) OwnerOf(tokenID *big.Int) (common.Address, error) {
	return c.assets.OwnerOf(tokenID)
}

func (c *Collection) Exists(tokenID *big.Int) bool {
	return c.assets.Exists(tokenID)
}

func (c *Collection) BalanceOf(owner common.Address) uint64 {
	return c.assets.BalanceOf(owner)
}

// TokenURI prefers the per-token URI recorded at mint and falls back to the
// base URI plus the decimal token id.
func (c *Collection) TokenURI(tokenID *big.Int) (string, error) {
	uri, err := c.assets.TokenURI(tokenID)
	if err != nil {
		return "", err
	}
	if uri == "" {
		return c.baseURI + tokenID.String(), nil
	}
	return uri, nil
}

func (c *Collection) Approve(ctx context.Context, caller, to common.Address, tokenID *big.Int) error {
	return c.assets.Approve(ctx, caller, to, tokenID)
}

func (c *Collection) SetApprovalForAll(ctx context.Context, owner, operator common.Address, approved bool) error {
	return c.assets.SetApprovalForAll(ctx, owner, operator, approved)
}

func (c *Collection) IsApprovedForAll(owner, operator common.Address) bool {
	return c.assets.IsApprovedForAll(owner, operator)
}

func (c *Collection) IsApprovedOrOwner(operator common.Address, tokenID *big.Int) bool {
	return c.assets.IsApprovedOrOwner(operator, tokenID)
}

func (c *Collection) TransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error {
	if err := c.assets.TransferFrom(ctx, operator, from, to, tokenID); err != nil {
		return err
	}
	c.emitter.Emit(ctx, events.Transfer{NFT: c.address, From: from, To: to, TokenID: tokenID})
	return nil
}
