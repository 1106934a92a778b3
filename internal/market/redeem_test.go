package market_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/market"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

type redeemTerms struct {
	tokenID       *big.Int
	unitPrice     *big.Int
	saleID        *big.Int
	purchasePrice *big.Int
	feeRate       *big.Int
	paymentToken  common.Address
	receiver      common.Address
	offered       *big.Int
}

func defaultTerms(f *fixture) redeemTerms {
	return redeemTerms{
		tokenID:       editionToken(1, 1),
		unitPrice:     big.NewInt(1000),
		saleID:        big.NewInt(180021080),
		purchasePrice: big.NewInt(1000),
		feeRate:       big.NewInt(50_000),
		paymentToken:  token.NativeCoin,
		receiver:      f.creator.Address,
		offered:       big.NewInt(1000),
	}
}

// signedRedeem produces a fully signed voucher bundle for the given terms:
// creator signs the lazy-mint and sale layers, the authority clears the pair.
func (f *fixture) signedRedeem(t *testing.T, terms redeemTerms) market.RedeemRequest {
	t.Helper()
	one := big.NewInt(1)

	lazyDigest, err := (vouchers.LazyMint{
		Creator:     f.creator.Address,
		NFTContract: f.coll.Address(),
		TokenID:     terms.tokenID,
		MintAmount:  one,
		AssetType:   constants.AssetTypeERC721,
	}).Digest()
	require.NoError(t, err)
	lazySig, err := f.creator.Sign(lazyDigest)
	require.NoError(t, err)

	saleDigest, err := (vouchers.Sale{
		TokenID:         terms.tokenID,
		NFTContract:     f.coll.Address(),
		Creator:         f.creator.Address,
		PaymentReceiver: terms.receiver,
		PaymentToken:    terms.paymentToken,
		UnitPrice:       terms.unitPrice,
	}).Digest()
	require.NoError(t, err)
	saleSig, err := f.creator.Sign(saleDigest)
	require.NoError(t, err)

	authDigest, err := (vouchers.Authorized{
		SaleID:          terms.saleID,
		OnSaleAmount:    one,
		PurchasePrice:   terms.purchasePrice,
		PurchaseAmount:  one,
		FeeRate:         terms.feeRate,
		LazyMintSigHash: vouchers.HashSignature(lazySig),
		SaleSigHash:     vouchers.HashSignature(saleSig),
	}).Digest()
	require.NoError(t, err)
	authSig, err := f.authority.Sign(authDigest)
	require.NoError(t, err)

	return market.RedeemRequest{
		Creator:         f.creator.Address,
		NFTContract:     f.coll.Address(),
		PaymentToken:    terms.paymentToken,
		PaymentReceiver: terms.receiver,
		TokenID:         terms.tokenID,
		UnitPrice:       terms.unitPrice,
		SaleID:          terms.saleID,
		PurchasePrice:   terms.purchasePrice,
		FeeRate:         terms.feeRate,
		LazyMintSig:     lazySig,
		SaleSig:         saleSig,
		AuthoritySig:    authSig,
		URI:             "ipfs://edition",
		Buyer:           buyerAddr,
		Offered:         terms.offered,
	}
}

func (f *fixture) newRedeemRequest(t *testing.T) market.RedeemRequest {
	return f.signedRedeem(t, defaultTerms(f))
}

func TestRedeemEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.newRedeemRequest(t)

	rec, err := f.market.Redeem(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "50", rec.Fee.String())
	assert.Equal(t, "950", rec.Payout.String())
	assert.Equal(t, constants.TradeRedeemNative, rec.TradeType)
	assert.Equal(t, "180021080", rec.SaleID)

	owner, err := f.coll.OwnerOf(req.TokenID)
	require.NoError(t, err)
	assert.Equal(t, buyerAddr, owner)

	sub, _ := f.coll.SubCollection(1)
	assert.Equal(t, uint64(1), sub.MintedAmt)

	assert.Equal(t, "9000", f.bank.Balance(buyerAddr).String())
	assert.Equal(t, "50", f.bank.Balance(treasuryAddr).String())
	assert.Equal(t, "950", f.bank.Balance(f.creator.Address).String())
	assert.Equal(t, "0", f.bank.Balance(marketAddr).String(), "escrow must be drained")

	txs := f.emitter.byName("SporesNFTMarketTransaction")
	require.Len(t, txs, 1)
	tx := txs[0].(events.MarketTransaction)
	assert.Equal(t, buyerAddr, tx.Buyer)
	assert.Equal(t, f.creator.Address, tx.Seller)
	assert.Equal(t, "50", tx.Fee.String())
	assert.Equal(t, "180021080", tx.SaleID.String())
}

func TestRedeemSameBundleTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.newRedeemRequest(t)

	_, err := f.market.Redeem(ctx, req)
	require.NoError(t, err)

	_, err = f.market.Redeem(ctx, req)
	assert.ErrorIs(t, err, token.ErrTokenAlreadyMinted)

	// Balances exactly as after the first redemption.
	assert.Equal(t, "9000", f.bank.Balance(buyerAddr).String())
	assert.Equal(t, "50", f.bank.Balance(treasuryAddr).String())
	assert.Equal(t, "950", f.bank.Balance(f.creator.Address).String())
	assert.Equal(t, "0", f.bank.Balance(marketAddr).String())
}

func TestRedeemTamperedPurchasePrice(t *testing.T) {
	f := newFixture(t)
	req := f.newRedeemRequest(t)
	req.PurchasePrice = big.NewInt(999)
	req.Offered = big.NewInt(999)

	_, err := f.market.Redeem(context.Background(), req)
	assert.ErrorIs(t, err, registry.ErrInvalidVerifier)
	assert.Equal(t, "10000", f.bank.Balance(buyerAddr).String())
	assert.False(t, f.coll.Exists(req.TokenID))
}

func TestRedeemPriceFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The authority genuinely cleared a price below the creator's floor.
	terms := defaultTerms(f)
	terms.purchasePrice = big.NewInt(999)
	terms.offered = big.NewInt(999)
	_, err := f.market.Redeem(ctx, f.signedRedeem(t, terms))
	assert.ErrorIs(t, err, market.ErrInvalidPurchasePrice)

	// Paying above the floor is allowed.
	terms = defaultTerms(f)
	terms.purchasePrice = big.NewInt(1500)
	terms.offered = big.NewInt(1500)
	rec, err := f.market.Redeem(ctx, f.signedRedeem(t, terms))
	require.NoError(t, err)
	assert.Equal(t, "75", rec.Fee.String())
	assert.Equal(t, "1425", rec.Payout.String())
}

func TestRedeemCanceledSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	terms := defaultTerms(f)
	terms.saleID = big.NewInt(11112222)

	sig := f.signCancel(t, f.creator.Address, terms.saleID)
	require.NoError(t, f.market.Cancel(ctx, f.creator.Address, terms.saleID, sig))

	_, err := f.market.Redeem(ctx, f.signedRedeem(t, terms))
	assert.ErrorIs(t, err, market.ErrInvalidSaleID)
	assert.Equal(t, "10000", f.bank.Balance(buyerAddr).String())
}

func TestRedeemFieldSubstitution(t *testing.T) {
	strangerAddr := common.HexToAddress("0xdead11111111111111111111111111111111dead")

	tests := []struct {
		name    string
		mutate  func(req *market.RedeemRequest)
		wantErr error
	}{
		{
			name:    "creator swapped",
			mutate:  func(req *market.RedeemRequest) { req.Creator = strangerAddr },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "payment receiver swapped",
			mutate:  func(req *market.RedeemRequest) { req.PaymentReceiver = strangerAddr },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "payment token swapped",
			mutate:  func(req *market.RedeemRequest) { req.PaymentToken = strangerAddr },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "token id swapped",
			mutate:  func(req *market.RedeemRequest) { req.TokenID = editionToken(1, 2) },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "nft contract swapped",
			mutate:  func(req *market.RedeemRequest) { req.NFTContract = strangerAddr },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "unit price lowered",
			mutate:  func(req *market.RedeemRequest) { req.UnitPrice = big.NewInt(500) },
			wantErr: market.ErrInvalidSignatureOrParams,
		},
		{
			name:    "sale id swapped",
			mutate:  func(req *market.RedeemRequest) { req.SaleID = big.NewInt(99999999) },
			wantErr: registry.ErrInvalidVerifier,
		},
		{
			name:    "fee rate swapped",
			mutate:  func(req *market.RedeemRequest) { req.FeeRate = big.NewInt(10_000) },
			wantErr: registry.ErrInvalidVerifier,
		},
		{
			name: "lazy-mint signature swapped",
			mutate: func(req *market.RedeemRequest) {
				req.LazyMintSig = append([]byte(nil), req.SaleSig...)
			},
			wantErr: registry.ErrInvalidVerifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.newRedeemRequest(t)
			tt.mutate(&req)

			_, err := f.market.Redeem(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "10000", f.bank.Balance(buyerAddr).String(), "no payment may move")
			assert.False(t, f.coll.Exists(editionToken(1, 1)))
		})
	}
}

func TestRedeemUnregisteredContract(t *testing.T) {
	f := newFixture(t)
	req := f.newRedeemRequest(t)

	// Unregistration is immediate and retroactive: bundles signed earlier
	// stop settling.
	require.NoError(t, f.registry.UnregisterNFTContract(adminAddr, f.coll.Address(), constants.AssetTypeERC721))

	_, err := f.market.Redeem(context.Background(), req)
	assert.ErrorIs(t, err, market.ErrContractNotSupported)
}

func TestRedeemUnsupportedPaymentToken(t *testing.T) {
	f := newFixture(t)
	terms := defaultTerms(f)
	terms.paymentToken = common.HexToAddress("0xe2011111111111111111111111111111111120e2")

	_, err := f.market.Redeem(context.Background(), f.signedRedeem(t, terms))
	assert.ErrorIs(t, err, market.ErrInvalidPayment)
}

func TestRedeemInsufficientNativeValue(t *testing.T) {
	f := newFixture(t)
	terms := defaultTerms(f)
	terms.offered = big.NewInt(999)

	_, err := f.market.Redeem(context.Background(), f.signedRedeem(t, terms))
	assert.ErrorIs(t, err, market.ErrInsufficientPayment)
	assert.Equal(t, "10000", f.bank.Balance(buyerAddr).String())
}

func TestRedeemInsufficientNativeBalance(t *testing.T) {
	f := newFixture(t)
	poor := common.HexToAddress("0xb2222222222222222222222222222222222222b2")
	require.NoError(t, f.bank.Deposit(poor, big.NewInt(500)))

	req := f.newRedeemRequest(t)
	req.Buyer = poor

	_, err := f.market.Redeem(context.Background(), req)
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	assert.Equal(t, "500", f.bank.Balance(poor).String())
}

func TestRedeemERC20(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	erc20Addr := common.HexToAddress("0xe2011111111111111111111111111111111120e2")
	erc20 := token.NewInMemoryERC20()
	f.directory.AddERC20(erc20Addr, erc20)
	require.NoError(t, f.registry.RegisterPaymentToken(adminAddr, erc20Addr))
	require.NoError(t, erc20.Mint(ctx, buyerAddr, big.NewInt(5000)))

	terms := defaultTerms(f)
	terms.paymentToken = erc20Addr
	terms.offered = nil

	// Without an allowance for the escrow the pull fails as the token says.
	_, err := f.market.Redeem(ctx, f.signedRedeem(t, terms))
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.NoError(t, erc20.Approve(ctx, buyerAddr, marketAddr, big.NewInt(1000)))
	rec, err := f.market.Redeem(ctx, f.signedRedeem(t, terms))
	require.NoError(t, err)
	assert.Equal(t, constants.TradeRedeemERC20, rec.TradeType)

	assert.Equal(t, "4000", erc20.BalanceOf(buyerAddr).String())
	assert.Equal(t, "50", erc20.BalanceOf(treasuryAddr).String())
	assert.Equal(t, "950", erc20.BalanceOf(f.creator.Address).String())
	assert.Equal(t, "0", erc20.BalanceOf(marketAddr).String())
}

func TestRedeemConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	req := f.newRedeemRequest(t)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.market.Redeem(context.Background(), req)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, token.ErrTokenAlreadyMinted)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, "9000", f.bank.Balance(buyerAddr).String(), "buyer charged exactly once")

	owner, err := f.coll.OwnerOf(req.TokenID)
	require.NoError(t, err)
	assert.Equal(t, buyerAddr, owner)
}
