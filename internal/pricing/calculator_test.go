package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/pricing"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestItemTax(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{TaxRate: dec(t, "0.07")}

	cases := []struct {
		price string
		want  string
	}{
		{"10.00", "0.70"},
		{"0.00", "0.00"},
		{"19.99", "1.40"},
		{"1.00", "0.07"},
		{"0.01", "0.00"},
		{"100.00", "7.00"},
	}
	for _, tc := range cases {
		got := calc.ItemTax(dec(t, tc.price))
		require.Equal(t, tc.want, pricing.Format(got), "price %s", tc.price)
	}
}

func TestPlatformFee(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{TaxRate: dec(t, "0.07")}

	fee, err := calc.PlatformFee(dec(t, "25.70"), dec(t, "0.05"))
	require.NoError(t, err)
	require.Equal(t, "1.29", pricing.Format(fee))

	fee, err = calc.PlatformFee(decimal.Zero, dec(t, "0.10"))
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}

func TestPlatformFeeWithinTotal(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{}
	for _, total := range []string{"0.01", "5.00", "123.45", "99999.99"} {
		sum := dec(t, total)
		fee, err := calc.PlatformFee(sum, dec(t, "1"))
		require.NoError(t, err)
		require.False(t, fee.IsNegative())
		require.True(t, fee.LessThanOrEqual(sum))
	}
}

func TestPlatformFeeRejectsNegativeTotal(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{}
	_, err := calc.PlatformFee(dec(t, "-0.01"), dec(t, "0.10"))
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidAmount, appErr.Code)
}

func TestPlatformFeeRejectsOutOfRangeRate(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{}
	total := dec(t, "25.00")

	for _, rate := range []string{"-0.50", "1.01", "2.00"} {
		_, err := calc.PlatformFee(total, dec(t, rate))
		require.Error(t, err, "rate %s", rate)

		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, common.CodeInvalidAmount, appErr.Code)
	}

	// Boundary rates stay valid: 0 charges nothing, 1 charges the full total.
	fee, err := calc.PlatformFee(total, decimal.Zero)
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	fee, err = calc.PlatformFee(total, dec(t, "1"))
	require.NoError(t, err)
	require.Equal(t, "25.00", pricing.Format(fee))
}

func TestValidFeeRate(t *testing.T) {
	t.Parallel()

	require.True(t, pricing.ValidFeeRate(decimal.Zero))
	require.True(t, pricing.ValidFeeRate(dec(t, "0.10")))
	require.True(t, pricing.ValidFeeRate(dec(t, "1")))
	require.False(t, pricing.ValidFeeRate(dec(t, "-0.01")))
	require.False(t, pricing.ValidFeeRate(dec(t, "1.01")))
}

func TestFeeRateOrDefault(t *testing.T) {
	t.Parallel()

	calc := pricing.Calculator{DefaultFeeRate: dec(t, "0.10")}
	require.Equal(t, "0.10", calc.FeeRateOrDefault(nil).String())

	override := dec(t, "0.05")
	require.Equal(t, "0.05", calc.FeeRateOrDefault(&override).String())
}
