package market

import (
	"fmt"
	"math/big"
)

// RateDenominator is the fixed denominator fee rates are expressed over:
// a rate of 50_000 is a 5% cut.
const RateDenominator = 1_000_000

var rateDenominator = big.NewInt(RateDenominator)

// SplitPrice divides a purchase price into the treasury fee and the seller
// payout. The division truncates toward zero, so the fee never exceeds its
// proportional share and fee+payout always equals price exactly.
func SplitPrice(price, feeRate *big.Int) (fee, payout *big.Int, err error) {
	if price == nil || price.Sign() <= 0 {
		return nil, nil, fmt.Errorf("price must be positive")
	}
	if feeRate == nil || feeRate.Sign() < 0 || feeRate.Cmp(rateDenominator) > 0 {
		return nil, nil, fmt.Errorf("fee rate %v out of range", feeRate)
	}

	fee = new(big.Int).Mul(price, feeRate)
	fee.Quo(fee, rateDenominator)
	payout = new(big.Int).Sub(price, fee)
	return fee, payout, nil
}
