package handlers

import (
	"math/big"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/sporesmarket/settlement/internal/collection"
	"github.com/sporesmarket/settlement/internal/helpers"
	"github.com/sporesmarket/settlement/internal/tokenid"
)

// CollectionHandler handles collection deployment, edition ranges and minting
type CollectionHandler struct {
	common *CommonServices
}

// NewCollectionHandler creates a new instance of CollectionHandler
func NewCollectionHandler(common *CommonServices) *CollectionHandler {
	return &CollectionHandler{common: common}
}

// CreateCollectionRequest represents the request body for deploying a collection
type CreateCollectionRequest struct {
	Creator           string `json:"creator" binding:"required"`
	CollectionID      string `json:"collection_id" binding:"required"`
	MaxEdition        uint64 `json:"max_edition" binding:"required"`
	RequestID         string `json:"request_id" binding:"required"`
	Admin             string `json:"admin" binding:"required"`
	Name              string `json:"name" binding:"required"`
	BaseURI           string `json:"base_uri"`
	CreationSignature string `json:"creation_signature" binding:"required"`
}

// AddSubCollectionRequest represents the request body for opening a new edition range
type AddSubCollectionRequest struct {
	Caller     string `json:"caller" binding:"required"`
	MaxEdition uint64 `json:"max_edition" binding:"required"`
}

// MintRequest represents the request body for an eager authority-signed mint
type MintRequest struct {
	To                 string `json:"to" binding:"required"`
	TokenID            string `json:"token_id" binding:"required"`
	URI                string `json:"uri"`
	AuthoritySignature string `json:"authority_signature" binding:"required"`
}

// MintBatchRequest represents the request body for an eager authority-signed batch mint
type MintBatchRequest struct {
	To                 string   `json:"to" binding:"required"`
	TokenIDs           []string `json:"token_ids" binding:"required"`
	URIs               []string `json:"uris"`
	AuthoritySignature string   `json:"authority_signature" binding:"required"`
}

// SubCollectionResponse represents one edition range of a collection
type SubCollectionResponse struct {
	ID         uint64 `json:"id"`
	MaxEdition uint64 `json:"max_edition"`
	MintedAmt  uint64 `json:"minted_amt"`
}

// CollectionResponse represents the standardized API response for collection operations
type CollectionResponse struct {
	Object         string                  `json:"object"`
	ID             string                  `json:"id"`
	Address        string                  `json:"address"`
	Creator        string                  `json:"creator"`
	Admin          string                  `json:"admin"`
	Name           string                  `json:"name"`
	BaseURI        string                  `json:"base_uri"`
	Registry       string                  `json:"registry"`
	SubCollections []SubCollectionResponse `json:"sub_collections"`
}

// TokenResponse represents the standardized API response for a minted edition
type TokenResponse struct {
	Object       string `json:"object"`
	TokenID      string `json:"token_id"`
	CollectionID string `json:"collection_id"`
	Owner        string `json:"owner"`
	URI          string `json:"uri"`
}

func toCollectionResponse(c *collection.Collection) CollectionResponse {
	subs := c.SubCollections()
	subResponses := make([]SubCollectionResponse, 0, len(subs))
	for id, sub := range subs {
		subResponses = append(subResponses, SubCollectionResponse{
			ID:         id,
			MaxEdition: sub.MaxEdition,
			MintedAmt:  sub.MintedAmt,
		})
	}
	sort.Slice(subResponses, func(i, j int) bool { return subResponses[i].ID < subResponses[j].ID })

	return CollectionResponse{
		Object:         "collection",
		ID:             c.CollectionID().String(),
		Address:        c.Address().Hex(),
		Creator:        c.Creator().Hex(),
		Admin:          c.Admin().Hex(),
		Name:           c.Name(),
		BaseURI:        c.BaseURI(),
		Registry:       c.RegistryAddress().Hex(),
		SubCollections: subResponses,
	}
}

// CreateCollection godoc
// @Summary Deploy a collection
// @Description Verifies the creation voucher and deploys a new collection namespace
// @Tags collections
// @Accept json
// @Produce json
// @Param request body CreateCollectionRequest true "Creation voucher"
// @Success 201 {object} CollectionResponse
// @Failure 400 {object} ErrorResponse
// @Router /collections [post]
func (h *CollectionHandler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	creator, ok := parseAddress(req.Creator)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid creator address", nil)
		return
	}
	admin, ok := parseAddress(req.Admin)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid admin address", nil)
		return
	}
	collectionID, ok := helpers.ParseBig(req.CollectionID)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid collection ID", nil)
		return
	}
	requestID, ok := helpers.ParseBig(req.RequestID)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid request ID", nil)
		return
	}
	sig, ok := parseSignature(req.CreationSignature)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid creation signature encoding", nil)
		return
	}

	params := collection.Params{
		CollectionID: collectionID,
		MaxEdition:   req.MaxEdition,
		RequestID:    requestID,
		Admin:        admin,
		Name:         req.Name,
		BaseURI:      req.BaseURI,
	}

	created, err := h.common.collections.Create(c.Request.Context(), creator, params, sig)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, toCollectionResponse(created))
}

// GetCollection godoc
// @Summary Get collection by ID
// @Description Returns the collection with its edition ranges
// @Tags collections
// @Accept json
// @Produce json
// @Param collection_id path string true "Collection ID"
// @Success 200 {object} CollectionResponse
// @Failure 404 {object} ErrorResponse
// @Router /collections/{collection_id} [get]
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	collectionID, ok := helpers.ParseBig(c.Param("collection_id"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid collection ID", nil)
		return
	}

	coll, ok := h.common.collections.Get(collectionID)
	if !ok {
		sendError(c, http.StatusNotFound, "Collection not found", nil)
		return
	}

	sendSuccess(c, http.StatusOK, toCollectionResponse(coll))
}

// ListCollections godoc
// @Summary List collections
// @Description Returns all deployed collections
// @Tags collections
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /collections [get]
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	colls := h.common.collections.List()

	response := make([]CollectionResponse, len(colls))
	for i, coll := range colls {
		response[i] = toCollectionResponse(coll)
	}

	sendList(c, response)
}

// AddSubCollection godoc
// @Summary Open a new edition range
// @Description Adds a sub-collection with the given capacity; collection creator only
// @Tags collections
// @Accept json
// @Produce json
// @Param collection_id path string true "Collection ID"
// @Param request body AddSubCollectionRequest true "Caller and capacity"
// @Success 201 {object} SubCollectionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /collections/{collection_id}/subcollections [post]
func (h *CollectionHandler) AddSubCollection(c *gin.Context) {
	collectionID, ok := helpers.ParseBig(c.Param("collection_id"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid collection ID", nil)
		return
	}

	var req AddSubCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid caller address", nil)
		return
	}

	coll, ok := h.common.collections.Get(collectionID)
	if !ok {
		sendError(c, http.StatusNotFound, "Collection not found", nil)
		return
	}

	subID, err := coll.AddSubCollection(c.Request.Context(), caller, req.MaxEdition)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sub, _ := coll.SubCollection(subID)
	sendSuccess(c, http.StatusCreated, SubCollectionResponse{
		ID:         subID,
		MaxEdition: sub.MaxEdition,
		MintedAmt:  sub.MintedAmt,
	})
}

// GetToken godoc
// @Summary Get token by ID
// @Description Returns owner and metadata URI for a minted edition
// @Tags collections
// @Accept json
// @Produce json
// @Param token_id path string true "Token ID"
// @Success 200 {object} TokenResponse
// @Failure 404 {object} ErrorResponse
// @Router /tokens/{token_id} [get]
func (h *CollectionHandler) GetToken(c *gin.Context) {
	id, ok := helpers.ParseBig(c.Param("token_id"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid token ID", nil)
		return
	}

	parts := tokenid.Decode(id)

	coll, ok := h.common.collections.Get(parts.Collection)
	if !ok {
		sendError(c, http.StatusNotFound, "Collection not found", nil)
		return
	}

	owner, err := coll.OwnerOf(id)
	if err != nil {
		sendError(c, http.StatusNotFound, "Token not found", err)
		return
	}
	uri, err := coll.TokenURI(id)
	if err != nil {
		sendError(c, http.StatusNotFound, "Token not found", err)
		return
	}

	sendSuccess(c, http.StatusOK, TokenResponse{
		Object:       "token",
		TokenID:      id.String(),
		CollectionID: parts.Collection.String(),
		Owner:        owner.Hex(),
		URI:          uri,
	})
}

// Mint godoc
// @Summary Mint an edition through the minter role
// @Description Verifies the authority mint voucher and mints the edition to the recipient
// @Tags collections
// @Accept json
// @Produce json
// @Param request body MintRequest true "Mint voucher"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /mint [post]
func (h *CollectionHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	to, ok := parseAddress(req.To)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid recipient address", nil)
		return
	}
	tokenID, ok := helpers.ParseBig(req.TokenID)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid token ID", nil)
		return
	}
	sig, ok := parseSignature(req.AuthoritySignature)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid authority signature encoding", nil)
		return
	}

	if err := h.common.minter.Mint(c.Request.Context(), to, tokenID, req.URI, sig); err != nil {
		handleEngineError(c, err)
		return
	}

	parts := tokenid.Decode(tokenID)
	sendSuccess(c, http.StatusOK, TokenResponse{
		Object:       "token",
		TokenID:      tokenID.String(),
		CollectionID: parts.Collection.String(),
		Owner:        to.Hex(),
		URI:          req.URI,
	})
}

// MintBatch godoc
// @Summary Mint a batch of editions through the minter role
// @Description Verifies the authority batch voucher and mints every edition to the recipient
// @Tags collections
// @Accept json
// @Produce json
// @Param request body MintBatchRequest true "Batch mint voucher"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /mint/batch [post]
func (h *CollectionHandler) MintBatch(c *gin.Context) {
	var req MintBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	to, ok := parseAddress(req.To)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid recipient address", nil)
		return
	}
	sig, ok := parseSignature(req.AuthoritySignature)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid authority signature encoding", nil)
		return
	}

	tokenIDs := make([]*big.Int, len(req.TokenIDs))
	for i, raw := range req.TokenIDs {
		id, ok := helpers.ParseBig(raw)
		if !ok {
			sendError(c, http.StatusBadRequest, "Invalid token ID", nil)
			return
		}
		tokenIDs[i] = id
	}

	if err := h.common.minter.MintBatch(c.Request.Context(), to, tokenIDs, req.URIs, sig); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Batch minted")
}
