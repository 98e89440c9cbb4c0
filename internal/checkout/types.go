package checkout

// Line is one cart position: a product reference and a purchase quantity.
type Line struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"amount" validate:"required,min=1"`
}

// ShippingAddress is the buyer-supplied delivery destination shared by every
// purchase unit in the order.
type ShippingAddress struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	Postcode     string `json:"postcode"`
}

// Input is a checkout request: the cart maps store ids to that store's line
// items. The cart itself is supplied by an external session collaborator and
// is never persisted here.
type Input struct {
	Cart            map[string][]Line `json:"cart" validate:"required,min=1,dive,dive"`
	CurrencyCode    string            `json:"currencyCode"`
	ShippingAddress ShippingAddress   `json:"shippingAddress"`
}

// CaptureInput identifies a previously created processor order.
type CaptureInput struct {
	OrderID string `json:"orderId"`
}

// RefundInput identifies a capture to refund. Value empty means full refund.
type RefundInput struct {
	CaptureID    string `json:"captureId"`
	Value        string `json:"value,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}
