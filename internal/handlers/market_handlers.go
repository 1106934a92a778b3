package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/sporesmarket/settlement/internal/helpers"
	"github.com/sporesmarket/settlement/internal/market"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
)

// MarketHandler handles redemption, purchase and cancellation operations
type MarketHandler struct {
	common *CommonServices
}

// NewMarketHandler creates a new instance of MarketHandler
func NewMarketHandler(common *CommonServices) *MarketHandler {
	return &MarketHandler{common: common}
}

// RedeemRequest represents the request body for redeeming a lazy-mint voucher bundle
type RedeemRequest struct {
	Buyer           string `json:"buyer" binding:"required"`
	Creator         string `json:"creator" binding:"required"`
	NFTContract     string `json:"nft_contract" binding:"required"`
	PaymentToken    string `json:"payment_token"`
	PaymentReceiver string `json:"payment_receiver" binding:"required"`

	TokenID       string `json:"token_id" binding:"required"`
	UnitPrice     string `json:"unit_price" binding:"required"`
	SaleID        string `json:"sale_id" binding:"required"`
	PurchasePrice string `json:"purchase_price" binding:"required"`
	FeeRate       string `json:"fee_rate" binding:"required"`
	URI           string `json:"uri"`

	LazyMintSignature  string `json:"lazy_mint_signature" binding:"required"`
	SaleSignature      string `json:"sale_signature" binding:"required"`
	AuthoritySignature string `json:"authority_signature" binding:"required"`

	Offered string `json:"offered"`
}

// PurchaseRequest represents the request body for settling a secondary sale
type PurchaseRequest struct {
	Buyer           string `json:"buyer" binding:"required"`
	Seller          string `json:"seller" binding:"required"`
	PaymentReceiver string `json:"payment_receiver" binding:"required"`
	NFTContract     string `json:"nft_contract" binding:"required"`
	PaymentToken    string `json:"payment_token"`

	TokenID   string `json:"token_id" binding:"required"`
	Price     string `json:"price" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	FeeRate   string `json:"fee_rate" binding:"required"`
	SaleID    string `json:"sale_id" binding:"required"`
	TradeType string `json:"trade_type" binding:"required"`

	AuthoritySignature string `json:"authority_signature" binding:"required"`

	Offered string `json:"offered"`
}

// CancelRequest represents the request body for canceling a sale
type CancelRequest struct {
	Seller             string `json:"seller" binding:"required"`
	SaleID             string `json:"sale_id" binding:"required"`
	AuthoritySignature string `json:"authority_signature" binding:"required"`
}

// SettlementResponse represents the standardized API response for a settlement record
type SettlementResponse struct {
	Object          string `json:"object"`
	SaleID          string `json:"sale_id"`
	TradeType       string `json:"trade_type"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	PaymentReceiver string `json:"payment_receiver"`
	NFTContract     string `json:"nft_contract"`
	TokenID         string `json:"token_id"`
	PaymentToken    string `json:"payment_token"`
	Amount          string `json:"amount"`
	Price           string `json:"price"`
	Fee             string `json:"fee"`
	Payout          string `json:"payout"`
	SettledAt       int64  `json:"settled_at"`
}

func toSettlementResponse(rec *store.Settlement) SettlementResponse {
	return SettlementResponse{
		Object:          "settlement",
		SaleID:          rec.SaleID,
		TradeType:       rec.TradeType,
		Buyer:           rec.Buyer.Hex(),
		Seller:          rec.Seller.Hex(),
		PaymentReceiver: rec.PaymentReceiver.Hex(),
		NFTContract:     rec.NFTContract.Hex(),
		TokenID:         rec.TokenID.String(),
		PaymentToken:    rec.PaymentToken.Hex(),
		Amount:          rec.Amount.String(),
		Price:           rec.Price.String(),
		Fee:             rec.Fee.String(),
		Payout:          rec.Payout.String(),
		SettledAt:       rec.SettledAt.Unix(),
	}
}

// paymentTokenAddress treats an empty payment_token field as native coin.
func paymentTokenAddress(raw string) (common.Address, bool) {
	if raw == "" {
		return token.NativeCoin, true
	}
	return parseAddress(raw)
}

// Redeem godoc
// @Summary Redeem a lazy-mint voucher bundle
// @Description Verifies the creator and authority signatures, mints the edition to the buyer and settles payment
// @Tags market
// @Accept json
// @Produce json
// @Param request body RedeemRequest true "Voucher bundle and buyer"
// @Success 200 {object} SettlementResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /market/redeem [post]
func (h *MarketHandler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	engineReq, err := h.toEngineRedeem(req)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	rec, err := h.common.market.Redeem(c.Request.Context(), *engineReq)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, toSettlementResponse(rec))
}

// Purchase godoc
// @Summary Settle a secondary sale
// @Description Verifies the authority signature over the sale terms, moves the asset and settles payment
// @Tags market
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Sale terms and buyer"
// @Success 200 {object} SettlementResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /market/purchase [post]
func (h *MarketHandler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	engineReq, err := h.toEnginePurchase(req)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	rec, err := h.common.market.Purchase(c.Request.Context(), *engineReq)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, toSettlementResponse(rec))
}

// Cancel godoc
// @Summary Cancel a sale
// @Description Marks the sale id canceled so its vouchers can never settle
// @Tags market
// @Accept json
// @Produce json
// @Param request body CancelRequest true "Seller and authority clearance"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /market/cancel [post]
func (h *MarketHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	seller, ok := parseAddress(req.Seller)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid seller address", nil)
		return
	}
	saleID, ok := helpers.ParseBig(req.SaleID)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid sale ID", nil)
		return
	}
	sig, ok := parseSignature(req.AuthoritySignature)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid authority signature encoding", nil)
		return
	}

	if err := h.common.market.Cancel(c.Request.Context(), seller, saleID, sig); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Sale canceled")
}

// GetSettlement godoc
// @Summary Get settlement by sale ID
// @Description Returns the settlement record for a settled sale
// @Tags market
// @Accept json
// @Produce json
// @Param sale_id path string true "Sale ID"
// @Success 200 {object} SettlementResponse
// @Failure 404 {object} ErrorResponse
// @Router /market/settlements/{sale_id} [get]
func (h *MarketHandler) GetSettlement(c *gin.Context) {
	saleID, ok := helpers.ParseBig(c.Param("sale_id"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid sale ID", nil)
		return
	}

	rec, err := h.common.market.Settlement(c.Request.Context(), saleID)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, toSettlementResponse(rec))
}

// ListSettlements godoc
// @Summary List settlements
// @Description Returns settlement records, most recent first
// @Tags market
// @Accept json
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /market/settlements [get]
func (h *MarketHandler) ListSettlements(c *gin.Context) {
	limit, offset := helpers.ParsePagination(c.Query("limit"), c.Query("offset"))

	recs, err := h.common.market.Settlements(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to retrieve settlements", err)
		return
	}

	response := make([]SettlementResponse, len(recs))
	for i, rec := range recs {
		response[i] = toSettlementResponse(rec)
	}

	sendList(c, response)
}

func (h *MarketHandler) toEngineRedeem(req RedeemRequest) (*market.RedeemRequest, error) {
	out := &market.RedeemRequest{URI: req.URI}

	addrs := []struct {
		raw  string
		dst  *common.Address
		name string
	}{
		{req.Buyer, &out.Buyer, "buyer"},
		{req.Creator, &out.Creator, "creator"},
		{req.NFTContract, &out.NFTContract, "nft_contract"},
		{req.PaymentReceiver, &out.PaymentReceiver, "payment_receiver"},
	}
	for _, a := range addrs {
		parsed, ok := parseAddress(a.raw)
		if !ok {
			return nil, fieldError(a.name)
		}
		*a.dst = parsed
	}

	payment, ok := paymentTokenAddress(req.PaymentToken)
	if !ok {
		return nil, fieldError("payment_token")
	}
	out.PaymentToken = payment

	if out.TokenID, ok = helpers.ParseBig(req.TokenID); !ok {
		return nil, fieldError("token_id")
	}
	if out.UnitPrice, ok = helpers.ParseBig(req.UnitPrice); !ok {
		return nil, fieldError("unit_price")
	}
	if out.SaleID, ok = helpers.ParseBig(req.SaleID); !ok {
		return nil, fieldError("sale_id")
	}
	if out.PurchasePrice, ok = helpers.ParseBig(req.PurchasePrice); !ok {
		return nil, fieldError("purchase_price")
	}
	if out.FeeRate, ok = helpers.ParseBig(req.FeeRate); !ok {
		return nil, fieldError("fee_rate")
	}
	if req.Offered != "" {
		if out.Offered, ok = helpers.ParseBig(req.Offered); !ok {
			return nil, fieldError("offered")
		}
	}

	if out.LazyMintSig, ok = parseSignature(req.LazyMintSignature); !ok {
		return nil, fieldError("lazy_mint_signature")
	}
	if out.SaleSig, ok = parseSignature(req.SaleSignature); !ok {
		return nil, fieldError("sale_signature")
	}
	if out.AuthoritySig, ok = parseSignature(req.AuthoritySignature); !ok {
		return nil, fieldError("authority_signature")
	}

	return out, nil
}

func (h *MarketHandler) toEnginePurchase(req PurchaseRequest) (*market.PurchaseRequest, error) {
	out := &market.PurchaseRequest{TradeType: req.TradeType}

	addrs := []struct {
		raw  string
		dst  *common.Address
		name string
	}{
		{req.Buyer, &out.Buyer, "buyer"},
		{req.Seller, &out.Seller, "seller"},
		{req.PaymentReceiver, &out.PaymentReceiver, "payment_receiver"},
		{req.NFTContract, &out.NFTContract, "nft_contract"},
	}
	for _, a := range addrs {
		parsed, ok := parseAddress(a.raw)
		if !ok {
			return nil, fieldError(a.name)
		}
		*a.dst = parsed
	}

	payment, ok := paymentTokenAddress(req.PaymentToken)
	if !ok {
		return nil, fieldError("payment_token")
	}
	out.PaymentToken = payment

	if out.TokenID, ok = helpers.ParseBig(req.TokenID); !ok {
		return nil, fieldError("token_id")
	}
	if out.Price, ok = helpers.ParseBig(req.Price); !ok {
		return nil, fieldError("price")
	}
	if out.Amount, ok = helpers.ParseBig(req.Amount); !ok {
		return nil, fieldError("amount")
	}
	if out.FeeRate, ok = helpers.ParseBig(req.FeeRate); !ok {
		return nil, fieldError("fee_rate")
	}
	if out.SaleID, ok = helpers.ParseBig(req.SaleID); !ok {
		return nil, fieldError("sale_id")
	}
	if req.Offered != "" {
		if out.Offered, ok = helpers.ParseBig(req.Offered); !ok {
			return nil, fieldError("offered")
		}
	}

	if out.AuthoritySig, ok = parseSignature(req.AuthoritySignature); !ok {
		return nil, fieldError("authority_signature")
	}

	return out, nil
}
