// Package market implements the redemption and settlement engine. A market
// instance validates the signature chain presented with each trade, collects
// payment through a two-phase escrow, performs the mint or transfer, and
// commits the fee split together with the durable settlement record. Every
// failure aborts the whole operation with the escrow released; state is never
// partially applied.
//
// Per sale id the logical states are unseen, redeemed and canceled. Redemption
// leaves no explicit marker beyond the settlement record: replaying a redeemed
// bundle fails on the token existing, not on a status flag.
package market

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

var (
	ErrInvalidSignatureOrParams = errors.New("InvalidSignatureOrParams")
	ErrInvalidPurchasePrice     = errors.New("InvalidPurchasePrice")
	ErrContractNotSupported     = errors.New("ContractNotSupported")
	ErrInvalidPayment           = errors.New("InvalidPayment")
	ErrInsufficientPayment      = errors.New("InsufficientPayment")
	ErrSellerNotOwner           = errors.New("SellerNotOwner")
	ErrInvalidSaleID            = errors.New("Invalid saleId")
	ErrSaleAlreadyRecorded      = errors.New("SaleID already recorded")
)

// Authority is the slice of the registry the market consults.
type Authority interface {
	Verify(ctx context.Context, digest common.Hash, sig []byte) error
	IsMarket(addr common.Address) bool
	IsSupportedNFT(addr common.Address) bool
	IsSupportedPayment(addr common.Address) bool
	IsERC1155(addr common.Address) bool
	Treasury() common.Address
}

// LazyMinter is the redemption capability of a collection-backed NFT
// contract. Contracts bound in the directory that do not provide it cannot
// serve the lazy path.
type LazyMinter interface {
	Lazymint(ctx context.Context, caller, creator, to common.Address, tokenID *big.Int, uri string) error
}

// Market is one settlement engine instance. The registry decides whether it
// is the active market; a superseded instance rejects every trade even
// though its wiring stays intact.
type Market struct {
	address   common.Address
	authority Authority
	ledger    store.Ledger
	locks     *store.KeyedMutex
	collector *token.Collector
	directory *token.Directory
	emitter   events.Emitter
}

func New(address common.Address, authority Authority, ledger store.Ledger, collector *token.Collector, directory *token.Directory, emitter events.Emitter) *Market {
	return &Market{
		address:   address,
		authority: authority,
		ledger:    ledger,
		locks:     store.NewKeyedMutex(),
		collector: collector,
		directory: directory,
		emitter:   emitter,
	}
}

func (m *Market) Address() common.Address { return m.address }

// guard rejects calls once the registry points at a newer market.
func (m *Market) guard() error {
	if !m.authority.IsMarket(m.address) {
		return registry.ErrUnauthorized
	}
	return nil
}

// Cancel permanently voids a sale id on behalf of the calling seller. The
// authority signature must cover exactly (caller, saleId); the cancellation
// is irreversible and independent of whether the sale was ever redeemable.
func (m *Market) Cancel(ctx context.Context, caller common.Address, saleID *big.Int, authoritySig []byte) error {
	if err := m.guard(); err != nil {
		return err
	}
	if saleID == nil || saleID.Sign() < 0 {
		return ErrInvalidSignatureOrParams
	}

	digest, err := (vouchers.Cancel{Seller: caller, SaleID: saleID}).Digest()
	if err != nil {
		return ErrInvalidSignatureOrParams
	}
	if err := m.authority.Verify(ctx, digest, authoritySig); err != nil {
		return err
	}

	key := saleID.String()
	unlock := m.locks.Lock(key)
	defer unlock()

	if err := m.ledger.CancelSale(ctx, key); err != nil {
		if errors.Is(err, store.ErrAlreadyCanceled) {
			return ErrSaleAlreadyRecorded
		}
		return err
	}

	logger.Info("sale canceled",
		zap.String("sale_id", key),
		zap.String("seller", caller.Hex()))
	m.emitter.Emit(ctx, events.Cancel{SaleID: saleID, Seller: caller})
	return nil
}

// Settlement returns the record of a settled sale id.
func (m *Market) Settlement(ctx context.Context, saleID *big.Int) (*store.Settlement, error) {
	if saleID == nil {
		return nil, store.ErrNotFound
	}
	return m.ledger.GetSettlement(ctx, saleID.String())
}

// Settlements lists settlement records, newest first.
func (m *Market) Settlements(ctx context.Context, limit, offset int) ([]*store.Settlement, error) {
	return m.ledger.ListSettlements(ctx, limit, offset)
}

// checkPayment runs the shared payment-method gate: the zero address is the
// native coin, anything else must be a registered ERC-20.
func (m *Market) checkPayment(paymentToken common.Address) error {
	if paymentToken != token.NativeCoin && !m.authority.IsSupportedPayment(paymentToken) {
		return ErrInvalidPayment
	}
	return nil
}

// release returns reserved funds to the buyer after a failed settlement step.
func release(ctx context.Context, res *token.Reservation, saleID string) {
	if err := res.Release(ctx); err != nil {
		logger.Error("release reserved payment",
			zap.String("sale_id", saleID),
			zap.Error(err))
	}
}
