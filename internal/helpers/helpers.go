package helpers

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sporesmarket/settlement/internal/constants"
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case constants.StageProd, constants.StageDev, constants.StageLocal, constants.StageTest:
		return true
	default:
		return false
	}
}

// IsAddressValid reports whether s parses as a hex account address.
func IsAddressValid(s string) bool {
	return common.IsHexAddress(s)
}

// ParseBig parses a base-10 unsigned integer string into a big.Int.
// Returns false for empty strings, signs, or any non-digit character.
func ParseBig(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	return v, ok
}

// ParsePagination reads limit/offset query strings with sane bounds.
// Limit defaults to 20 and is capped at 100; offset defaults to 0.
func ParsePagination(limitStr, offsetStr string) (limit, offset int) {
	limit = 20
	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
