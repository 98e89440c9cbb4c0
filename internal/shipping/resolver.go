package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// Line is one cart position inside a parcel.
type Line struct {
	ProductID string
	Quantity  int
}

// Parcel describes one store's share of a checkout. Cost resolution receives
// the full line list because shipping may depend on weight or count
// aggregation.
type Parcel struct {
	StoreID string
	Lines   []Line
}

// Resolver quotes the shipping cost for a single store's parcel. One call per
// store per checkout; no retry policy.
type Resolver interface {
	Cost(ctx context.Context, p Parcel) (decimal.Decimal, error)
}

// FlatRate charges a fixed amount per store regardless of parcel contents.
type FlatRate struct {
	Amount decimal.Decimal
}

// Cost returns the configured flat amount.
func (f FlatRate) Cost(ctx context.Context, _ Parcel) (decimal.Decimal, error) {
	_ = ctx
	return f.Amount, nil
}

// Mock returns a static cost and is useful for testing and development.
type Mock struct{}

// Cost returns a canned cost regardless of the parcel.
func (Mock) Cost(ctx context.Context, _ Parcel) (decimal.Decimal, error) {
	_ = ctx
	return decimal.NewFromInt(5), nil
}
