package market

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

// PurchaseRequest carries one authority-cleared secondary sale. The asset
// already exists, so there is no creator voucher layer: the authority signs
// every sale term directly. Price is the total settlement price for Amount
// units.
type PurchaseRequest struct {
	Seller          common.Address
	PaymentReceiver common.Address
	NFTContract     common.Address
	TokenID         *big.Int
	PaymentToken    common.Address
	FeeRate         *big.Int
	Price           *big.Int
	Amount          *big.Int
	SaleID          *big.Int
	TradeType       string

	AuthoritySig []byte

	Buyer   common.Address
	Offered *big.Int
}

// Purchase settles a sale of an existing asset: verify the authority
// signature over the full term set, collect payment into escrow, move the
// asset, then commit the fee split, the settlement record and the signature
// burn in one ledger write. Burning the signature keeps the voucher from
// being replayed after the seller reacquires the asset.
func (m *Market) Purchase(ctx context.Context, req PurchaseRequest) (*store.Settlement, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if req.SaleID == nil || req.SaleID.Sign() < 0 ||
		req.TokenID == nil || req.Price == nil || req.FeeRate == nil ||
		req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, ErrInvalidSignatureOrParams
	}

	saleKey := req.SaleID.String()
	unlock := m.locks.Lock(saleKey)
	defer unlock()

	digest, err := (vouchers.Purchase{
		Seller:          req.Seller,
		PaymentReceiver: req.PaymentReceiver,
		NFTContract:     req.NFTContract,
		TokenID:         req.TokenID,
		PaymentToken:    req.PaymentToken,
		FeeRate:         req.FeeRate,
		Price:           req.Price,
		Amount:          req.Amount,
		SaleID:          req.SaleID,
		TradeType:       req.TradeType,
	}).Digest()
	if err != nil {
		return nil, ErrInvalidSignatureOrParams
	}
	if err := m.authority.Verify(ctx, digest, req.AuthoritySig); err != nil {
		return nil, err
	}

	canceled, err := m.ledger.IsSaleCanceled(ctx, saleKey)
	if err != nil {
		return nil, err
	}
	if canceled {
		return nil, ErrInvalidSaleID
	}
	if _, err := m.ledger.GetSettlement(ctx, saleKey); err == nil {
		return nil, ErrInvalidSaleID
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if !m.authority.IsSupportedNFT(req.NFTContract) {
		return nil, ErrContractNotSupported
	}
	if err := m.checkPayment(req.PaymentToken); err != nil {
		return nil, err
	}

	erc1155 := m.authority.IsERC1155(req.NFTContract)
	native := req.PaymentToken == token.NativeCoin
	if req.TradeType != buyTradeType(erc1155, native) {
		return nil, ErrInvalidSignatureOrParams
	}
	if !erc1155 && req.Amount.Cmp(big.NewInt(1)) != 0 {
		return nil, ErrInvalidSignatureOrParams
	}

	transfer, err := m.checkAsset(req, erc1155)
	if err != nil {
		return nil, err
	}

	fee, payout, err := SplitPrice(req.Price, req.FeeRate)
	if err != nil {
		return nil, err
	}
	if native {
		if req.Offered == nil || req.Offered.Cmp(req.Price) < 0 {
			return nil, ErrInsufficientPayment
		}
	}

	res, err := m.collector.Reserve(ctx, req.Buyer, req.PaymentToken, req.Price)
	if err != nil {
		return nil, err
	}

	// The seller's own transfer authorization is not pre-checked: the asset
	// move surfaces the underlying ledger's error unmodified.
	if err := transfer(ctx); err != nil {
		release(ctx, res, saleKey)
		return nil, err
	}

	rec := &store.Settlement{
		SaleID:          saleKey,
		TradeType:       req.TradeType,
		Buyer:           req.Buyer,
		Seller:          req.Seller,
		PaymentReceiver: req.PaymentReceiver,
		NFTContract:     req.NFTContract,
		TokenID:         new(big.Int).Set(req.TokenID),
		PaymentToken:    req.PaymentToken,
		Amount:          new(big.Int).Set(req.Amount),
		Price:           new(big.Int).Set(req.Price),
		Fee:             fee,
		Payout:          payout,
		SettledAt:       time.Now().UTC(),
	}
	sigKey := registry.ConsumptionKey(digest, req.AuthoritySig)
	// The asset has moved; a ledger fault here is reported for
	// reconciliation with the escrow refunded.
	if err := m.ledger.RecordSettlement(ctx, rec, sigKey); err != nil {
		logger.Error("record settlement after transfer",
			zap.String("sale_id", saleKey),
			zap.Error(err))
		release(ctx, res, saleKey)
		return nil, err
	}
	if err := res.Commit(ctx,
		token.Split{To: m.authority.Treasury(), Amount: fee},
		token.Split{To: req.PaymentReceiver, Amount: payout},
	); err != nil {
		logger.Error("commit payment split",
			zap.String("sale_id", saleKey),
			zap.Error(err))
		return nil, err
	}

	logger.Info("sale settled",
		zap.String("sale_id", saleKey),
		zap.String("token_id", req.TokenID.String()),
		zap.String("buyer", req.Buyer.Hex()),
		zap.String("trade_type", req.TradeType),
		zap.String("price", req.Price.String()),
		zap.String("fee", fee.String()))
	m.emitter.Emit(ctx, events.MarketTransaction{
		Buyer:           req.Buyer,
		Seller:          req.Seller,
		PaymentReceiver: req.PaymentReceiver,
		ContractNFT:     req.NFTContract,
		PaymentToken:    req.PaymentToken,
		TokenID:         rec.TokenID,
		Price:           rec.Price,
		Amount:          rec.Amount,
		Fee:             rec.Fee,
		SaleID:          new(big.Int).Set(req.SaleID),
		TradeType:       req.TradeType,
	})
	return rec, nil
}

// checkAsset verifies the seller currently holds what the voucher sells and
// returns the transfer step for the asset class.
func (m *Market) checkAsset(req PurchaseRequest, erc1155 bool) (func(context.Context) error, error) {
	if erc1155 {
		multi, ok := m.directory.MultiToken(req.NFTContract)
		if !ok {
			return nil, ErrContractNotSupported
		}
		if multi.BalanceOf(req.Seller, req.TokenID).Cmp(req.Amount) < 0 {
			return nil, ErrSellerNotOwner
		}
		return func(ctx context.Context) error {
			return multi.SafeTransferFrom(ctx, m.address, req.Seller, req.Buyer, req.TokenID, req.Amount)
		}, nil
	}

	nft, ok := m.directory.NFT(req.NFTContract)
	if !ok {
		return nil, ErrContractNotSupported
	}
	owner, err := nft.OwnerOf(req.TokenID)
	if err != nil || owner != req.Seller {
		return nil, ErrSellerNotOwner
	}
	return func(ctx context.Context) error {
		return nft.TransferFrom(ctx, m.address, req.Seller, req.Buyer, req.TokenID)
	}, nil
}

// buyTradeType is the tag the authority must have signed for this asset
// class and payment method combination.
func buyTradeType(erc1155, native bool) string {
	switch {
	case erc1155 && native:
		return constants.TradeBuy1155Native
	case erc1155:
		return constants.TradeBuy1155ERC20
	case native:
		return constants.TradeBuy721Native
	default:
		return constants.TradeBuy721ERC20
	}
}
