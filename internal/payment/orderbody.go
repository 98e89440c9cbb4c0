package payment

// Wire types for the processor's multi-party checkout API (Orders v2). All
// monetary values are decimal strings with exactly two fraction digits.

// Fixed policy fields sent with every order.
const (
	IntentCapture              = "CAPTURE"
	LandingPageBilling         = "BILLING"
	ShippingPreferenceProvided = "SET_PROVIDED_ADDRESS"
	UserActionContinue         = "CONTINUE"
	DisbursementModeInstant    = "INSTANT"
)

// MoneyValue is a currency-tagged monetary amount.
type MoneyValue struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Item is one line item inside a purchase unit.
type Item struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	UnitAmount  MoneyValue `json:"unit_amount"`
	Tax         MoneyValue `json:"tax"`
	Quantity    string     `json:"quantity"`
}

// Breakdown decomposes a purchase unit's amount. The amount value equals
// item_total plus tax_total plus shipping.
type Breakdown struct {
	ItemTotal MoneyValue `json:"item_total"`
	Shipping  MoneyValue `json:"shipping"`
	TaxTotal  MoneyValue `json:"tax_total"`
}

// Amount is a purchase unit's total with its breakdown.
type Amount struct {
	CurrencyCode string    `json:"currency_code"`
	Value        string    `json:"value"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Payee identifies a receiving merchant account.
type Payee struct {
	MerchantID   string `json:"merchant_id"`
	EmailAddress string `json:"email_address,omitempty"`
}

// PlatformFee is the marketplace operator's cut of one purchase unit.
type PlatformFee struct {
	Amount MoneyValue `json:"amount"`
	Payee  Payee      `json:"payee"`
}

// PaymentInstruction communicates settlement policy and platform fees.
type PaymentInstruction struct {
	DisbursementMode string        `json:"disbursement_mode"`
	PlatformFees     []PlatformFee `json:"platform_fees"`
}

// ShippingName is the recipient's full name.
type ShippingName struct {
	FullName string `json:"full_name"`
}

// ShippingAddress is the processor's address shape.
type ShippingAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

// Shipping is the delivery destination of a purchase unit.
type Shipping struct {
	Name    ShippingName    `json:"name"`
	Address ShippingAddress `json:"address"`
}

// PurchaseUnit is one store's portion of a multi-seller order.
type PurchaseUnit struct {
	ReferenceID        string             `json:"reference_id"`
	Payee              Payee              `json:"payee"`
	Amount             Amount             `json:"amount"`
	Items              []Item             `json:"items"`
	Shipping           Shipping           `json:"shipping"`
	PaymentInstruction PaymentInstruction `json:"payment_instruction"`
}

// ApplicationContext carries buyer-experience flags.
type ApplicationContext struct {
	BrandName          string `json:"brand_name"`
	LandingPage        string `json:"landing_page"`
	ShippingPreference string `json:"shipping_preference"`
	UserAction         string `json:"user_action"`
}

// OrderBody is the complete create-order request payload.
type OrderBody struct {
	Intent             string             `json:"intent"`
	ApplicationContext ApplicationContext `json:"application_context"`
	PurchaseUnits      []PurchaseUnit     `json:"purchase_units"`
}
