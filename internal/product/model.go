package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item owned by a store.
type Product struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"storeId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"priceFloat"`
	StockAmount int             `json:"stockAmount"`
	ImgSrc      string          `json:"imgSrc"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
