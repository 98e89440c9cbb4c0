package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step names one of the activation checks. The set is closed: persistence and
// API responses use these exact field names.
type Step string

const (
	StepProfileComplete    Step = "profileComplete"
	StepMinOneProduct      Step = "minOneProduct"
	StepShippingRegistered Step = "shippingRegistered"
	StepPaymentRegistered  Step = "paymentMethodRegistered"
)

// Steps lists all activation steps in evaluation order.
func Steps() []Step {
	return []Step{StepProfileComplete, StepMinOneProduct, StepShippingRegistered, StepPaymentRegistered}
}

// ActivationSteps holds the per-step activation results owned by a store.
type ActivationSteps struct {
	ProfileComplete         bool `json:"profileComplete"`
	MinOneProduct           bool `json:"minOneProduct"`
	ShippingRegistered      bool `json:"shippingRegistered"`
	PaymentMethodRegistered bool `json:"paymentMethodRegistered"`
}

// All reports whether every step passed.
func (s ActivationSteps) All() bool {
	return s.ProfileComplete && s.MinOneProduct && s.ShippingRegistered && s.PaymentMethodRegistered
}

// Profile is the seller-facing presentation of a store.
type Profile struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
}

// Address is the store's physical address.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Country      string `json:"country"`
}

// Location is the geocoded position of the store, supplied by the caller.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Payment carries the store's payment-receiving configuration. PlatformFeeRate
// overrides the platform default commission when set.
type Payment struct {
	MerchantIDInPayPal string           `json:"merchantIdInPayPal"`
	PlatformFeeRate    *decimal.Decimal `json:"platformFeeRate,omitempty"`
}

// Store is a seller's shop.
type Store struct {
	ID         string          `json:"id"`
	OwnerEmail string          `json:"ownerEmail"`
	Profile    Profile         `json:"profileData"`
	Address    Address         `json:"address"`
	Location   Location        `json:"location"`
	Payment    Payment         `json:"payment"`
	AvgRating  string          `json:"avgRating"`
	Steps      ActivationSteps `json:"activationSteps"`
	Activation bool            `json:"activation"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
