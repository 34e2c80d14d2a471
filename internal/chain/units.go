package chain

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToWei scales a human amount to integer base units, truncating extra precision.
func ToWei(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromWei converts integer base units back to a decimal amount.
func FromWei(wei *big.Int, decimals uint8) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -int32(decimals))
}

// ToFloat converts wei (scaled int) to float using token decimals.
func ToFloat(amount *big.Int, decimals uint8) float64 {
	f, _ := FromWei(amount, decimals).Float64()
	return f
}

// ApplySlippage returns wei - wei*tolerance, exact, rounding the deduction down.
func ApplySlippage(wei *big.Int, tolerance decimal.Decimal) *big.Int {
	if wei == nil {
		return nil
	}
	cut := decimal.NewFromBigInt(wei, 0).Mul(tolerance).Truncate(0).BigInt()
	return new(big.Int).Sub(wei, cut)
}

// GweiToWei converts a gwei override into wei.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(9).Truncate(0).BigInt()
}

func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
