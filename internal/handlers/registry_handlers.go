package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/sporesmarket/settlement/internal/constants"
)

// RegistryHandler handles the authorization oracle's admin surface.
// Callers reach the mutating endpoints through the admin-gated route group;
// the engine-level caller check runs against the registry's own admin
// address, so the JWT gate and the engine gate always agree.
type RegistryHandler struct {
	common *CommonServices
}

// NewRegistryHandler creates a new instance of RegistryHandler
func NewRegistryHandler(common *CommonServices) *RegistryHandler {
	return &RegistryHandler{common: common}
}

// RegistryResponse represents the oracle's current privileged addresses
type RegistryResponse struct {
	Object   string `json:"object"`
	Admin    string `json:"admin"`
	Verifier string `json:"verifier"`
	Treasury string `json:"treasury"`
	Market   string `json:"market"`
	Minter   string `json:"minter"`
}

// NFTContractResponse represents one registered NFT contract
type NFTContractResponse struct {
	Object    string `json:"object"`
	Address   string `json:"address"`
	Supported bool   `json:"supported"`
	AssetType uint16 `json:"asset_type,omitempty"`
	IsERC1155 bool   `json:"is_erc1155,omitempty"`
}

// PaymentTokenResponse represents one registered payment token
type PaymentTokenResponse struct {
	Object    string `json:"object"`
	Address   string `json:"address"`
	Supported bool   `json:"supported"`
}

// RegisterNFTContractRequest represents the request body for registering an NFT contract
type RegisterNFTContractRequest struct {
	Address   string `json:"address" binding:"required"`
	AssetType uint16 `json:"asset_type" binding:"required"`
	IsERC1155 bool   `json:"is_erc1155"`
}

// RegisterPaymentTokenRequest represents the request body for registering a payment token
type RegisterPaymentTokenRequest struct {
	Address string `json:"address" binding:"required"`
}

// UpdateAddressRequest represents the request body for swapping a privileged address
type UpdateAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// GetRegistry godoc
// @Summary Get registry state
// @Description Returns the oracle's current privileged addresses
// @Tags registry
// @Accept json
// @Produce json
// @Success 200 {object} RegistryResponse
// @Router /registry [get]
func (h *RegistryHandler) GetRegistry(c *gin.Context) {
	reg := h.common.registry
	sendSuccess(c, http.StatusOK, RegistryResponse{
		Object:   "registry",
		Admin:    reg.Admin().Hex(),
		Verifier: reg.Verifier().Hex(),
		Treasury: reg.Treasury().Hex(),
		Market:   reg.Market().Hex(),
		Minter:   reg.Minter().Hex(),
	})
}

// GetNFTContract godoc
// @Summary Get NFT contract registration
// @Description Returns whether the contract is supported and under which asset type
// @Tags registry
// @Accept json
// @Produce json
// @Param address path string true "Contract address"
// @Success 200 {object} NFTContractResponse
// @Failure 400 {object} ErrorResponse
// @Router /registry/nft-contracts/{address} [get]
func (h *RegistryHandler) GetNFTContract(c *gin.Context) {
	addr, ok := parseAddress(c.Param("address"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid contract address", nil)
		return
	}

	assetType, supported := h.common.registry.NFTAssetType(addr)
	resp := NFTContractResponse{
		Object:    "nft_contract",
		Address:   addr.Hex(),
		Supported: supported,
	}
	if supported {
		resp.AssetType = assetType
		resp.IsERC1155 = h.common.registry.IsERC1155(addr)
	}

	sendSuccess(c, http.StatusOK, resp)
}

// GetPaymentToken godoc
// @Summary Get payment token registration
// @Description Returns whether the payment token is accepted for settlement
// @Tags registry
// @Accept json
// @Produce json
// @Param address path string true "Token address"
// @Success 200 {object} PaymentTokenResponse
// @Failure 400 {object} ErrorResponse
// @Router /registry/payment-tokens/{address} [get]
func (h *RegistryHandler) GetPaymentToken(c *gin.Context) {
	addr, ok := parseAddress(c.Param("address"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid token address", nil)
		return
	}

	sendSuccess(c, http.StatusOK, PaymentTokenResponse{
		Object:    "payment_token",
		Address:   addr.Hex(),
		Supported: h.common.registry.IsSupportedPayment(addr),
	})
}

// RegisterNFTContract godoc
// @Summary Register an NFT contract
// @Description Marks the contract tradable under the given asset type
// @Tags registry
// @Accept json
// @Produce json
// @Param request body RegisterNFTContractRequest true "Contract registration"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/nft-contracts [post]
func (h *RegistryHandler) RegisterNFTContract(c *gin.Context) {
	var req RegisterNFTContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid contract address", nil)
		return
	}
	if req.AssetType != constants.AssetTypeERC721 && req.AssetType != constants.AssetTypeERC1155 {
		sendError(c, http.StatusBadRequest, "Invalid asset type", nil)
		return
	}

	reg := h.common.registry
	if err := reg.RegisterNFTContract(reg.Admin(), addr, req.AssetType, req.IsERC1155); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "NFT contract registered")
}

// UnregisterNFTContract godoc
// @Summary Unregister an NFT contract
// @Description Removes the contract from the supported set
// @Tags registry
// @Accept json
// @Produce json
// @Param address path string true "Contract address"
// @Param asset_type query int true "Registered asset type"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/nft-contracts/{address} [delete]
func (h *RegistryHandler) UnregisterNFTContract(c *gin.Context) {
	addr, ok := parseAddress(c.Param("address"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid contract address", nil)
		return
	}

	assetType, err := safeParseUint16(c.Query("asset_type"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid asset type", err)
		return
	}

	reg := h.common.registry
	if err := reg.UnregisterNFTContract(reg.Admin(), addr, assetType); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "NFT contract unregistered")
}

// RegisterPaymentToken godoc
// @Summary Register a payment token
// @Description Marks the ERC-20 token acceptable for settlement
// @Tags registry
// @Accept json
// @Produce json
// @Param request body RegisterPaymentTokenRequest true "Token registration"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/payment-tokens [post]
func (h *RegistryHandler) RegisterPaymentToken(c *gin.Context) {
	var req RegisterPaymentTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid token address", nil)
		return
	}

	reg := h.common.registry
	if err := reg.RegisterPaymentToken(reg.Admin(), addr); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Payment token registered")
}

// UnregisterPaymentToken godoc
// @Summary Unregister a payment token
// @Description Removes the token from the accepted payment set
// @Tags registry
// @Accept json
// @Produce json
// @Param address path string true "Token address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/payment-tokens/{address} [delete]
func (h *RegistryHandler) UnregisterPaymentToken(c *gin.Context) {
	addr, ok := parseAddress(c.Param("address"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid token address", nil)
		return
	}

	reg := h.common.registry
	if err := reg.UnregisterPaymentToken(reg.Admin(), addr); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Payment token unregistered")
}

// UpdateMarket godoc
// @Summary Swap the live market
// @Description Points the oracle at a new market address; the old one is rejected from then on
// @Tags registry
// @Accept json
// @Produce json
// @Param request body UpdateAddressRequest true "New market address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/market [put]
func (h *RegistryHandler) UpdateMarket(c *gin.Context) {
	h.updateAddress(c, "Market updated", h.common.registry.UpdateMarket)
}

// UpdateMinter godoc
// @Summary Swap the live minter
// @Description Points the oracle at a new minter address; the old one is rejected from then on
// @Tags registry
// @Accept json
// @Produce json
// @Param request body UpdateAddressRequest true "New minter address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/minter [put]
func (h *RegistryHandler) UpdateMinter(c *gin.Context) {
	h.updateAddress(c, "Minter updated", h.common.registry.UpdateMinter)
}

// UpdateVerifier godoc
// @Summary Swap the trusted verifier
// @Description Replaces the authority key all future vouchers are checked against
// @Tags registry
// @Accept json
// @Produce json
// @Param request body UpdateAddressRequest true "New verifier address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/verifier [put]
func (h *RegistryHandler) UpdateVerifier(c *gin.Context) {
	h.updateAddress(c, "Verifier updated", h.common.registry.UpdateVerifier)
}

// UpdateTreasury godoc
// @Summary Swap the fee treasury
// @Description Replaces the address that collects settlement fees
// @Tags registry
// @Accept json
// @Produce json
// @Param request body UpdateAddressRequest true "New treasury address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/treasury [put]
func (h *RegistryHandler) UpdateTreasury(c *gin.Context) {
	h.updateAddress(c, "Treasury updated", h.common.registry.UpdateTreasury)
}

// UpdateAdmin godoc
// @Summary Hand over registry administration
// @Description Transfers the admin role to a new address
// @Tags registry
// @Accept json
// @Produce json
// @Param request body UpdateAddressRequest true "New admin address"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/registry/admin [put]
func (h *RegistryHandler) UpdateAdmin(c *gin.Context) {
	h.updateAddress(c, "Admin updated", h.common.registry.UpdateAdmin)
}

func (h *RegistryHandler) updateAddress(c *gin.Context, okMsg string, apply func(caller, addr common.Address) error) {
	var req UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid address", nil)
		return
	}

	if err := apply(h.common.registry.Admin(), addr); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, okMsg)
}
