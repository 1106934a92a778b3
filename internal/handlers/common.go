package handlers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/collection"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/market"
	"github.com/sporesmarket/settlement/internal/minter"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
)

// CommonServices holds common dependencies used across handlers
type CommonServices struct {
	market      *market.Market
	collections *collection.Factory
	registry    *registry.Registry
	minter      *minter.Service
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// NewCommonServices creates a new instance of CommonServices
func NewCommonServices(m *market.Market, collections *collection.Factory, reg *registry.Registry, minterSvc *minter.Service) *CommonServices {
	return &CommonServices{
		market:      m,
		collections: collections,
		registry:    reg,
		minter:      minterSvc,
	}
}

// sendError is a helper function that combines logging and error response
// It logs the error with the given message and sends a JSON error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// handleEngineError maps the engine's sentinel errors to HTTP status codes.
// Rejected vouchers and parameter mismatches surface the sentinel's own tag
// so callers can distinguish the failure without parsing prose.
func handleEngineError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		sendError(c, http.StatusNotFound, "Record not found", err)
	case errors.Is(err, registry.ErrUnauthorized):
		sendError(c, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, registry.ErrInvalidVerifier),
		errors.Is(err, market.ErrInvalidSignatureOrParams),
		errors.Is(err, market.ErrInvalidPurchasePrice),
		errors.Is(err, market.ErrContractNotSupported),
		errors.Is(err, market.ErrInvalidPayment),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrSellerNotOwner),
		errors.Is(err, market.ErrInvalidSaleID),
		errors.Is(err, market.ErrSaleAlreadyRecorded),
		errors.Is(err, collection.ErrInvalidCreator),
		errors.Is(err, collection.ErrInvalidCollection),
		errors.Is(err, collection.ErrCollectionExists),
		errors.Is(err, collection.ErrReachMaxEdition),
		errors.Is(err, collection.ErrInvalidTokenIds),
		errors.Is(err, collection.ErrLengthMismatch),
		errors.Is(err, token.ErrTokenAlreadyMinted),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrNotAuthorized),
		errors.Is(err, token.ErrNotOwner),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, token.ErrUnknownToken):
		sendError(c, http.StatusBadRequest, err.Error(), err)
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendSuccessMessage is a helper function that sends a success message
func sendSuccessMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, SuccessResponse{Message: message})
}

// sendList is a helper function that sends a paginated list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}

// parseAddress decodes a hex account address from a request field.
func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// parseSignature decodes a hex signature blob, 0x prefix optional.
func parseSignature(raw string) ([]byte, bool) {
	trimmed := strings.TrimPrefix(raw, "0x")
	if trimmed == "" {
		return nil, false
	}
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, false
	}
	return sig, true
}

// fieldError names the request field that failed to decode.
func fieldError(field string) error {
	return fmt.Errorf("invalid %s field", field)
}

// safeParseUint16 parses a string into a uint16, guarding against overflow
func safeParseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
