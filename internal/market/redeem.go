package market

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

// RedeemRequest carries one voucher bundle plus the buyer presenting it.
// Creator, NFTContract, PaymentToken and PaymentReceiver must equal the
// values the creator actually signed; TokenID, UnitPrice, SaleID,
// PurchasePrice and FeeRate likewise. Offered is the native value attached
// to the call and is ignored for ERC-20 payment.
type RedeemRequest struct {
	Creator         common.Address
	NFTContract     common.Address
	PaymentToken    common.Address
	PaymentReceiver common.Address

	TokenID       *big.Int
	UnitPrice     *big.Int
	SaleID        *big.Int
	PurchasePrice *big.Int
	FeeRate       *big.Int

	LazyMintSig  []byte
	SaleSig      []byte
	AuthoritySig []byte
	URI          string

	Buyer   common.Address
	Offered *big.Int
}

// Redeem consumes a voucher bundle atomically: verify the three-layer
// signature chain, collect payment into escrow, lazy-mint the token to the
// buyer, then commit the fee split and the settlement record. Any failure
// releases the escrow and leaves every ledger untouched.
//
// Redemption does not burn the authority signature: the token coming into
// existence is what makes the bundle single-use, so a replay fails with the
// mint's own TokenAlreadyMinted rather than a verifier error.
func (m *Market) Redeem(ctx context.Context, req RedeemRequest) (*store.Settlement, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if req.SaleID == nil || req.SaleID.Sign() < 0 ||
		req.TokenID == nil || req.UnitPrice == nil ||
		req.PurchasePrice == nil || req.FeeRate == nil {
		return nil, ErrInvalidSignatureOrParams
	}

	one := big.NewInt(1)
	saleKey := req.SaleID.String()
	unlock := m.locks.Lock(saleKey)
	defer unlock()

	// The authority clears the two creator signature blobs by hash, bound to
	// this exact sale id, price and fee.
	authDigest, err := (vouchers.Authorized{
		SaleID:          req.SaleID,
		OnSaleAmount:    one,
		PurchasePrice:   req.PurchasePrice,
		PurchaseAmount:  one,
		FeeRate:         req.FeeRate,
		LazyMintSigHash: vouchers.HashSignature(req.LazyMintSig),
		SaleSigHash:     vouchers.HashSignature(req.SaleSig),
	}).Digest()
	if err != nil {
		return nil, ErrInvalidSignatureOrParams
	}
	if err := m.authority.Verify(ctx, authDigest, req.AuthoritySig); err != nil {
		return nil, err
	}

	canceled, err := m.ledger.IsSaleCanceled(ctx, saleKey)
	if err != nil {
		return nil, err
	}
	if canceled {
		return nil, ErrInvalidSaleID
	}

	// The authority may clear paying more than the listed unit price, never
	// less.
	if req.PurchasePrice.Cmp(req.UnitPrice) < 0 {
		return nil, ErrInvalidPurchasePrice
	}

	// Both creator blobs must recover to the creator named in the call; the
	// digests are recomputed from the call parameters, so swapping any field
	// breaks recovery here.
	if err := m.checkCreatorVouchers(req, one); err != nil {
		return nil, err
	}

	if !m.authority.IsSupportedNFT(req.NFTContract) {
		return nil, ErrContractNotSupported
	}
	if err := m.checkPayment(req.PaymentToken); err != nil {
		return nil, err
	}
	nft, ok := m.directory.NFT(req.NFTContract)
	if !ok {
		return nil, ErrContractNotSupported
	}
	lm, ok := nft.(LazyMinter)
	if !ok {
		return nil, ErrContractNotSupported
	}

	fee, payout, err := SplitPrice(req.PurchasePrice, req.FeeRate)
	if err != nil {
		return nil, err
	}

	tradeType := constants.TradeRedeemNative
	if req.PaymentToken == token.NativeCoin {
		offered := req.Offered
		if offered == nil || offered.Cmp(req.PurchasePrice) < 0 {
			return nil, ErrInsufficientPayment
		}
	} else {
		tradeType = constants.TradeRedeemERC20
	}

	res, err := m.collector.Reserve(ctx, req.Buyer, req.PaymentToken, req.PurchasePrice)
	if err != nil {
		return nil, err
	}

	if err := lm.Lazymint(ctx, m.address, req.Creator, req.Buyer, req.TokenID, req.URI); err != nil {
		release(ctx, res, saleKey)
		return nil, err
	}

	rec := &store.Settlement{
		SaleID:          saleKey,
		TradeType:       tradeType,
		Buyer:           req.Buyer,
		Seller:          req.Creator,
		PaymentReceiver: req.PaymentReceiver,
		NFTContract:     req.NFTContract,
		TokenID:         new(big.Int).Set(req.TokenID),
		PaymentToken:    req.PaymentToken,
		Amount:          one,
		Price:           new(big.Int).Set(req.PurchasePrice),
		Fee:             fee,
		Payout:          payout,
		SettledAt:       time.Now().UTC(),
	}
	// The mint is irreversible from here on; a ledger fault leaves the token
	// with the buyer and the escrow refunded, reported for reconciliation.
	if err := m.ledger.RecordSettlement(ctx, rec); err != nil {
		logger.Error("record settlement after mint",
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

	logger.Info("sale redeemed",
		zap.String("sale_id", saleKey),
		zap.String("token_id", req.TokenID.String()),
		zap.String("buyer", req.Buyer.Hex()),
		zap.String("trade_type", tradeType),
		zap.String("price", req.PurchasePrice.String()),
		zap.String("fee", fee.String()))
	m.emitter.Emit(ctx, events.MarketTransaction{
		Buyer:           req.Buyer,
		Seller:          req.Creator,
		PaymentReceiver: req.PaymentReceiver,
		ContractNFT:     req.NFTContract,
		PaymentToken:    req.PaymentToken,
		TokenID:         rec.TokenID,
		Price:           rec.Price,
		Amount:          rec.Amount,
		Fee:             rec.Fee,
		SaleID:          new(big.Int).Set(req.SaleID),
		TradeType:       tradeType,
	})
	return rec, nil
}

// checkCreatorVouchers recomputes both creator digests from the call
// parameters and requires lazy-mint and sale signatures to recover to the
// same signer, the creator of record.
func (m *Market) checkCreatorVouchers(req RedeemRequest, amount *big.Int) error {
	lmDigest, err := (vouchers.LazyMint{
		Creator:     req.Creator,
		NFTContract: req.NFTContract,
		TokenID:     req.TokenID,
		MintAmount:  amount,
		AssetType:   constants.AssetTypeERC721,
	}).Digest()
	if err != nil {
		return ErrInvalidSignatureOrParams
	}
	lmSigner, err := vouchers.RecoverSigner(lmDigest, req.LazyMintSig)
	if err != nil {
		return ErrInvalidSignatureOrParams
	}

	saleDigest, err := (vouchers.Sale{
		TokenID:         req.TokenID,
		NFTContract:     req.NFTContract,
		Creator:         req.Creator,
		PaymentReceiver: req.PaymentReceiver,
		PaymentToken:    req.PaymentToken,
		UnitPrice:       req.UnitPrice,
	}).Digest()
	if err != nil {
		return ErrInvalidSignatureOrParams
	}
	saleSigner, err := vouchers.RecoverSigner(saleDigest, req.SaleSig)
	if err != nil {
		return ErrInvalidSignatureOrParams
	}

	if lmSigner != saleSigner || lmSigner != req.Creator {
		return ErrInvalidSignatureOrParams
	}
	return nil
}
