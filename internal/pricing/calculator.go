package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/common"
)

// Calculator computes per-item tax and per-store platform fees. The tax rate
// is a platform-wide constant; the fee rate is resolved per store by the
// caller and passed in, so the calculator stays agnostic to its source.
type Calculator struct {
	TaxRate        decimal.Decimal
	DefaultFeeRate decimal.Decimal
}

// ItemTax returns the tax portion of a listed unit price, rounded to two
// fraction digits. Tax is computed on the unit price as stored, not on the
// quantity-extended price.
func (c Calculator) ItemTax(price decimal.Decimal) decimal.Decimal {
	return price.Mul(c.TaxRate).Round(2)
}

// PlatformFee returns the marketplace commission for a store's total sum at
// the given rate, rounded to two fraction digits. A negative total is
// rejected before the fee is computed because downstream request bodies do
// not accept negative monetary strings, and the rate must lie in [0,1] so
// the fee never leaves [0, totalSum].
func (c Calculator) PlatformFee(totalSum, feeRate decimal.Decimal) (decimal.Decimal, error) {
	if totalSum.IsNegative() {
		return decimal.Zero, common.InvalidAmount("a negative total sum is not supported")
	}
	if !ValidFeeRate(feeRate) {
		return decimal.Zero, common.InvalidAmount("platform fee rate must be between 0 and 1")
	}
	return totalSum.Mul(feeRate).Round(2), nil
}

// ValidFeeRate reports whether rate is a usable commission rate in [0,1].
func ValidFeeRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(1))
}

// FeeRateOrDefault returns the store override when present, otherwise the
// platform default rate.
func (c Calculator) FeeRateOrDefault(override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return c.DefaultFeeRate
}

// Format renders a monetary value as a decimal string with exactly two
// fraction digits, the only representation the processor wire format accepts.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}
