// Package events carries the typed notifications the settlement engine emits
// for off-chain indexers: collection lifecycle, mint and transfer activity,
// completed market transactions and cancellations. Emission happens after the
// owning state change has committed and is fire-and-forget: a sink failure is
// logged, never surfaced to the settlement path.
package events

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/logger"
)

// Event is one notification. Name identifies the event family for sinks that
// route on it.
type Event interface {
	Name() string
}

type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NewCollection announces a collection created or a sub-collection appended,
// distinguished by the sub-collection id.
type NewCollection struct {
	CollectionID    *big.Int       `json:"collection_id"`
	SubCollectionID uint64         `json:"sub_collection_id"`
	MaxEdition      uint64         `json:"max_edition"`
	CollectionAddr  common.Address `json:"collection_addr"`
}

func (NewCollection) Name() string { return "NewCollection" }

type CollectionMintSingle struct {
	To  common.Address `json:"to"`
	NFT common.Address `json:"nft"`
	ID  *big.Int       `json:"id"`
}

func (CollectionMintSingle) Name() string { return "CollectionMintSingle" }

type CollectionMintBatch struct {
	To  common.Address `json:"to"`
	NFT common.Address `json:"nft"`
	IDs []*big.Int     `json:"ids"`
}

func (CollectionMintBatch) Name() string { return "CollectionMintBatch" }

// Transfer mirrors the token-standard transfer notification. Lazy redemption
// produces two of these per token: creator-mint, then creator-to-buyer.
type Transfer struct {
	NFT     common.Address `json:"nft"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID *big.Int       `json:"token_id"`
}

func (Transfer) Name() string { return "Transfer" }

// MarketTransaction is the single settlement event per completed trade.
type MarketTransaction struct {
	Buyer           common.Address `json:"buyer"`
	Seller          common.Address `json:"seller"`
	PaymentReceiver common.Address `json:"payment_receiver"`
	ContractNFT     common.Address `json:"contract_nft"`
	PaymentToken    common.Address `json:"payment_token"`
	TokenID         *big.Int       `json:"token_id"`
	Price           *big.Int       `json:"price"`
	Amount          *big.Int       `json:"amount"`
	Fee             *big.Int       `json:"fee"`
	SaleID          *big.Int       `json:"sale_id"`
	TradeType       string         `json:"trade_type"`
}

func (MarketTransaction) Name() string { return "SporesNFTMarketTransaction" }

type Cancel struct {
	SaleID *big.Int       `json:"sale_id"`
	Seller common.Address `json:"seller"`
}

func (Cancel) Name() string { return "Cancel" }

// Log writes every event to the structured log. It is the default sink.
type Log struct{}

func (Log) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("encode event", zap.String("event", event.Name()), zap.Error(err))
		return
	}
	logger.Info("event emitted",
		zap.String("event", event.Name()),
		zap.ByteString("payload", payload))
}

// Multi fans one event out to every sink in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		e.Emit(ctx, event)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(ctx context.Context, event Event) {}
