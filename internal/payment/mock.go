package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mysellum/marketplace-api/internal/common"
)

// Mock is an in-memory Processor used in tests and when the configured
// processor is "mock". Order ids are deterministic and created orders are
// retained for inspection.
type Mock struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]OrderBody
	captured map[string]bool
	refunded map[string]bool
}

func NewMock() *Mock {
	return &Mock{
		orders:   make(map[string]OrderBody),
		captured: make(map[string]bool),
		refunded: make(map[string]bool),
	}
}

func (m *Mock) CreateOrder(_ context.Context, body OrderBody) (OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("MOCK-ORDER-%04d", m.seq)
	m.orders[id] = body
	return OrderResult{ID: id, Status: "CREATED"}, nil
}

func (m *Mock) CaptureOrder(_ context.Context, orderID string) (OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return OrderResult{}, common.NotFound("order not found")
	}
	m.captured[orderID] = true
	return OrderResult{ID: orderID, Status: "COMPLETED"}, nil
}

func (m *Mock) RefundCapture(_ context.Context, captureID, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(captureID) == "" {
		return common.InvalidInput("capture id is required", nil)
	}
	m.refunded[captureID] = true
	return nil
}

func (m *Mock) ValidateMerchantID(_ context.Context, merchantID string) error {
	if strings.TrimSpace(merchantID) == "" || strings.HasPrefix(merchantID, "bad-") {
		return common.InvalidInput("invalid PayPal merchant id provided", nil)
	}
	return nil
}

func (m *Mock) CreateSignUpLink(_ context.Context, returnURL, trackingID string) (string, error) {
	return fmt.Sprintf("https://sandbox.example.com/signup?tracking_id=%s&return=%s", trackingID, returnURL), nil
}

// Order returns a created order body by id, for assertions.
func (m *Mock) Order(id string) (OrderBody, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.orders[id]
	return body, ok
}

// Captured reports whether an order was captured.
func (m *Mock) Captured(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captured[orderID]
}

// Refunded reports whether a capture was refunded.
func (m *Mock) Refunded(captureID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunded[captureID]
}
