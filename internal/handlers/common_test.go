package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/sporesmarket/settlement/internal/collection"
	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/market"
	"github.com/sporesmarket/settlement/internal/minter"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/tokenid"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

func init() {
	logger.InitLogger(constants.StageTest)
}

var (
	adminAddr    = common.HexToAddress("0xad111111111111111111111111111111111111ad")
	treasuryAddr = common.HexToAddress("0x7e111111111111111111111111111111111111e7")
	marketAddr   = common.HexToAddress("0x3a111111111111111111111111111111111111a3")
	minterAddr   = common.HexToAddress("0x111111111111111111111111111111111111111e")
	registryAddr = common.HexToAddress("0x5e111111111111111111111111111111111111e5")
	buyerAddr    = common.HexToAddress("0xb1111111111111111111111111111111111111b1")
	sellerAddr   = common.HexToAddress("0x5a111111111111111111111111111111111111a5")
)

const collectionNum = 721269

// testEnv wires the full engine behind a router the way the server does,
// minus the ambient middleware.
type testEnv struct {
	authority *vouchers.Keypair
	creator   *vouchers.Keypair
	registry  *registry.Registry
	bank      *token.InMemoryBank
	directory *token.Directory
	factory   *collection.Factory
	coll      *collection.Collection
	market    *market.Market
	minter    *minter.Service
	router    *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authority, err := vouchers.NewKeypair()
	require.NoError(t, err)
	creator, err := vouchers.NewKeypair()
	require.NoError(t, err)

	ledger := store.NewMemory()
	reg := registry.New(ledger, registry.Config{
		Admin:    adminAddr,
		Verifier: authority.Address,
		Treasury: treasuryAddr,
	})
	require.NoError(t, reg.UpdateMarket(adminAddr, marketAddr))
	require.NoError(t, reg.UpdateMinter(adminAddr, minterAddr))

	bank := token.NewInMemoryBank()
	dir := token.NewDirectory()
	collector := token.NewCollector(bank, dir, marketAddr)

	factory := collection.NewFactory(reg, registryAddr, dir, events.Nop{})
	params := collection.Params{
		CollectionID: big.NewInt(collectionNum),
		MaxEdition:   100,
		RequestID:    big.NewInt(1),
		Admin:        adminAddr,
		Name:         "Spores Genesis",
		BaseURI:      "https://meta.spores.app/",
	}
	creationDigest, err := (vouchers.Creation{
		CollectionID: params.CollectionID,
		MaxEdition:   params.MaxEdition,
		RequestID:    params.RequestID,
		Admin:        params.Admin,
		Registry:     registryAddr,
	}).Digest()
	require.NoError(t, err)
	creationSig, err := authority.Sign(creationDigest)
	require.NoError(t, err)
	coll, err := factory.Create(context.Background(), creator.Address, params, creationSig)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterNFTContract(adminAddr, coll.Address(), constants.AssetTypeERC721, false))

	require.NoError(t, bank.Deposit(buyerAddr, big.NewInt(10_000)))

	mkt := market.New(marketAddr, reg, ledger, collector, dir, events.Nop{})
	mintSvc := minter.New(minterAddr, reg, factory)

	env := &testEnv{
		authority: authority,
		creator:   creator,
		registry:  reg,
		bank:      bank,
		directory: dir,
		factory:   factory,
		coll:      coll,
		market:    mkt,
		minter:    mintSvc,
	}
	env.router = env.buildRouter()
	return env
}

// buildRouter mounts every route the server exposes, without middleware.
func (e *testEnv) buildRouter() *gin.Engine {
	commonServices := NewCommonServices(e.market, e.factory, e.registry, e.minter)
	marketHandler := NewMarketHandler(commonServices)
	collectionHandler := NewCollectionHandler(commonServices)
	registryHandler := NewRegistryHandler(commonServices)
	healthHandler := NewHealthHandler()

	router := gin.New()
	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/market/redeem", marketHandler.Redeem)
		v1.POST("/market/purchase", marketHandler.Purchase)
		v1.POST("/market/cancel", marketHandler.Cancel)
		v1.GET("/market/settlements", marketHandler.ListSettlements)
		v1.GET("/market/settlements/:sale_id", marketHandler.GetSettlement)

		v1.POST("/collections", collectionHandler.CreateCollection)
		v1.GET("/collections", collectionHandler.ListCollections)
		v1.GET("/collections/:collection_id", collectionHandler.GetCollection)
		v1.POST("/collections/:collection_id/subcollections", collectionHandler.AddSubCollection)
		v1.GET("/tokens/:token_id", collectionHandler.GetToken)
		v1.POST("/mint", collectionHandler.Mint)
		v1.POST("/mint/batch", collectionHandler.MintBatch)

		v1.GET("/registry", registryHandler.GetRegistry)
		v1.GET("/registry/nft-contracts/:address", registryHandler.GetNFTContract)
		v1.GET("/registry/payment-tokens/:address", registryHandler.GetPaymentToken)

		admin := v1.Group("/admin")
		{
			admin.POST("/registry/nft-contracts", registryHandler.RegisterNFTContract)
			admin.DELETE("/registry/nft-contracts/:address", registryHandler.UnregisterNFTContract)
			admin.POST("/registry/payment-tokens", registryHandler.RegisterPaymentToken)
			admin.DELETE("/registry/payment-tokens/:address", registryHandler.UnregisterPaymentToken)
			admin.PUT("/registry/market", registryHandler.UpdateMarket)
			admin.PUT("/registry/minter", registryHandler.UpdateMinter)
			admin.PUT("/registry/verifier", registryHandler.UpdateVerifier)
			admin.PUT("/registry/treasury", registryHandler.UpdateTreasury)
			admin.PUT("/registry/admin", registryHandler.UpdateAdmin)
		}
	}

	return router
}

// do serializes body (if any) and performs the request against the router.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func hexSig(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

func editionToken(sub, edition uint64) *big.Int {
	return tokenid.ID{Collection: big.NewInt(collectionNum), SubCollection: sub, Edition: edition}.MustEncode()
}

// redeemBody builds a fully signed redeem request for one edition priced at
// 1000 with a 5% fee, the same terms the engine tests settle.
func (e *testEnv) redeemBody(t *testing.T) RedeemRequest {
	t.Helper()
	one := big.NewInt(1)
	tokenID := editionToken(1, 1)
	unitPrice := big.NewInt(1000)
	saleID := big.NewInt(180021080)
	purchasePrice := big.NewInt(1000)
	feeRate := big.NewInt(50_000)

	lazyDigest, err := (vouchers.LazyMint{
		Creator:     e.creator.Address,
		NFTContract: e.coll.Address(),
		TokenID:     tokenID,
		MintAmount:  one,
		AssetType:   constants.AssetTypeERC721,
	}).Digest()
	require.NoError(t, err)
	lazySig, err := e.creator.Sign(lazyDigest)
	require.NoError(t, err)

	saleDigest, err := (vouchers.Sale{
		TokenID:         tokenID,
		NFTContract:     e.coll.Address(),
		Creator:         e.creator.Address,
		PaymentReceiver: e.creator.Address,
		PaymentToken:    token.NativeCoin,
		UnitPrice:       unitPrice,
	}).Digest()
	require.NoError(t, err)
	saleSig, err := e.creator.Sign(saleDigest)
	require.NoError(t, err)

	authDigest, err := (vouchers.Authorized{
		SaleID:          saleID,
		OnSaleAmount:    one,
		PurchasePrice:   purchasePrice,
		PurchaseAmount:  one,
		FeeRate:         feeRate,
		LazyMintSigHash: vouchers.HashSignature(lazySig),
		SaleSigHash:     vouchers.HashSignature(saleSig),
	}).Digest()
	require.NoError(t, err)
	authSig, err := e.authority.Sign(authDigest)
	require.NoError(t, err)

	return RedeemRequest{
		Buyer:              buyerAddr.Hex(),
		Creator:            e.creator.Address.Hex(),
		NFTContract:        e.coll.Address().Hex(),
		PaymentReceiver:    e.creator.Address.Hex(),
		TokenID:            tokenID.String(),
		UnitPrice:          unitPrice.String(),
		SaleID:             saleID.String(),
		PurchasePrice:      purchasePrice.String(),
		FeeRate:            feeRate.String(),
		URI:                "ipfs://edition",
		LazyMintSignature:  hexSig(lazySig),
		SaleSignature:      hexSig(saleSig),
		AuthoritySignature: hexSig(authSig),
		Offered:            purchasePrice.String(),
	}
}

// mintToSeller eagerly mints the edition to the seller so purchase tests
// have an existing asset, and grants the market transfer rights.
func (e *testEnv) mintToSeller(t *testing.T, tokenID *big.Int) {
	t.Helper()
	ctx := context.Background()

	digest, err := (vouchers.Mint{
		To:        sellerAddr,
		TokenID:   tokenID,
		URI:       "ipfs://seller-edition",
		AssetType: constants.AssetTypeERC721,
	}).Digest()
	require.NoError(t, err)
	sig, err := e.authority.Sign(digest)
	require.NoError(t, err)

	require.NoError(t, e.coll.Mint(ctx, e.creator.Address, sellerAddr, tokenID, "ipfs://seller-edition", sig))
	require.NoError(t, e.coll.SetApprovalForAll(ctx, sellerAddr, marketAddr, true))
}

// purchaseBody builds a signed purchase of tokenID from the seller at 2000
// with a 10% fee.
func (e *testEnv) purchaseBody(t *testing.T, tokenID *big.Int) PurchaseRequest {
	t.Helper()
	price := big.NewInt(2000)
	feeRate := big.NewInt(100_000)
	amount := big.NewInt(1)
	saleID := big.NewInt(555001)

	digest, err := (vouchers.Purchase{
		Seller:          sellerAddr,
		PaymentReceiver: sellerAddr,
		NFTContract:     e.coll.Address(),
		TokenID:         tokenID,
		PaymentToken:    token.NativeCoin,
		FeeRate:         feeRate,
		Price:           price,
		Amount:          amount,
		SaleID:          saleID,
		TradeType:       constants.TradeBuy721Native,
	}).Digest()
	require.NoError(t, err)
	sig, err := e.authority.Sign(digest)
	require.NoError(t, err)

	return PurchaseRequest{
		Buyer:              buyerAddr.Hex(),
		Seller:             sellerAddr.Hex(),
		PaymentReceiver:    sellerAddr.Hex(),
		NFTContract:        e.coll.Address().Hex(),
		TokenID:            tokenID.String(),
		Price:              price.String(),
		Amount:             amount.String(),
		FeeRate:            feeRate.String(),
		SaleID:             saleID.String(),
		TradeType:          constants.TradeBuy721Native,
		AuthoritySignature: hexSig(sig),
		Offered:            price.String(),
	}
}

func (e *testEnv) signCancel(t *testing.T, seller common.Address, saleID *big.Int) string {
	t.Helper()
	digest, err := (vouchers.Cancel{Seller: seller, SaleID: saleID}).Digest()
	require.NoError(t, err)
	sig, err := e.authority.Sign(digest)
	require.NoError(t, err)
	return hexSig(sig)
}
