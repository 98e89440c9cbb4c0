package payment

import "context"

// OrderResult is the minimal information returned by the processor when an
// order is created or captured. The processor is the source of truth for
// order state; nothing beyond this is persisted locally.
type OrderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Processor abstracts the operations required from the upstream payment
// processor.
type Processor interface {
	CreateOrder(ctx context.Context, body OrderBody) (OrderResult, error)
	CaptureOrder(ctx context.Context, orderID string) (OrderResult, error)
	RefundCapture(ctx context.Context, captureID, value, currencyCode string) error
	ValidateMerchantID(ctx context.Context, merchantID string) error
	CreateSignUpLink(ctx context.Context, returnURL, trackingID string) (string, error)
}
