package checkout

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/payment"
	"github.com/mysellum/marketplace-api/internal/pricing"
	"github.com/mysellum/marketplace-api/internal/product"
	"github.com/mysellum/marketplace-api/internal/shipping"
	"github.com/mysellum/marketplace-api/internal/store"
)

type stubStores map[string]store.Store

func (s stubStores) Find(_ context.Context, id string) (store.Store, error) {
	st, ok := s[id]
	if !ok {
		return store.Store{}, common.NotFound("store not found")
	}
	return st, nil
}

type stubProducts map[string]product.Product

func (s stubProducts) Find(_ context.Context, id string) (product.Product, error) {
	p, ok := s[id]
	if !ok {
		return product.Product{}, common.NotFound("product not found")
	}
	return p, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testService(stores stubStores, products stubProducts) *Service {
	return &Service{
		Stores:   stores,
		Products: products,
		Shipping: shipping.FlatRate{Amount: dec("5.00")},
		Calc: pricing.Calculator{
			TaxRate:        dec("0.07"),
			DefaultFeeRate: dec("0.10"),
		},
		Processor:          payment.NewMock(),
		BrandName:          "MySellum",
		CurrencyCode:       "EUR",
		CountryCode:        "DE",
		PlatformMerchantID: "PLATFORM123",
		PlatformEmail:      "payments@mysellum.example",
		Logger:             zerolog.Nop(),
	}
}

func validAddress() ShippingAddress {
	return ShippingAddress{
		FirstName:    "Erika",
		LastName:     "Mustermann",
		AddressLine1: "Musterstr. 1",
		City:         "Berlin",
		Postcode:     "10115",
	}
}

func TestBuildOrderBodySingleStore(t *testing.T) {
	feeRate := dec("0.05")
	stores := stubStores{
		"store1": {
			ID: "store1",
			Payment: store.Payment{
				MerchantIDInPayPal: "MERCHANT1",
				PlatformFeeRate:    &feeRate,
			},
		},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Description: "Raw forest honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	body, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 2}}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, payment.IntentCapture, body.Intent)
	assert.Equal(t, "MySellum", body.ApplicationContext.BrandName)
	assert.Equal(t, payment.LandingPageBilling, body.ApplicationContext.LandingPage)
	assert.Equal(t, payment.ShippingPreferenceProvided, body.ApplicationContext.ShippingPreference)
	assert.Equal(t, payment.UserActionContinue, body.ApplicationContext.UserAction)

	require.Len(t, body.PurchaseUnits, 1)
	unit := body.PurchaseUnits[0]
	assert.Equal(t, "store1~0", unit.ReferenceID)
	assert.Equal(t, "MERCHANT1", unit.Payee.MerchantID)

	// price 10.00, tax rate 0.07: tax/unit 0.70, net/unit 9.30; quantity 2
	// extends the sums; shipping 5.00; total rounded once.
	assert.Equal(t, "EUR", unit.Amount.CurrencyCode)
	assert.Equal(t, "25.00", unit.Amount.Value)
	assert.Equal(t, "18.60", unit.Amount.Breakdown.ItemTotal.Value)
	assert.Equal(t, "1.40", unit.Amount.Breakdown.TaxTotal.Value)
	assert.Equal(t, "5.00", unit.Amount.Breakdown.Shipping.Value)

	require.Len(t, unit.Items, 1)
	item := unit.Items[0]
	assert.Equal(t, "Honey", item.Name)
	assert.Equal(t, "9.30", item.UnitAmount.Value)
	assert.Equal(t, "0.70", item.Tax.Value)
	assert.Equal(t, "2", item.Quantity)

	// invariant: total == item_total + tax_total + shipping
	sum := dec(unit.Amount.Breakdown.ItemTotal.Value).
		Add(dec(unit.Amount.Breakdown.TaxTotal.Value)).
		Add(dec(unit.Amount.Breakdown.Shipping.Value))
	assert.Equal(t, unit.Amount.Value, sum.StringFixed(2))

	// fee = round(25.00 * 0.05, 2) using the store override
	require.Len(t, unit.PaymentInstruction.PlatformFees, 1)
	fee := unit.PaymentInstruction.PlatformFees[0]
	assert.Equal(t, "1.25", fee.Amount.Value)
	assert.Equal(t, "PLATFORM123", fee.Payee.MerchantID)
	assert.Equal(t, payment.DisbursementModeInstant, unit.PaymentInstruction.DisbursementMode)

	assert.Equal(t, "Erika Mustermann", unit.Shipping.Name.FullName)
	assert.Equal(t, "10115", unit.Shipping.Address.PostalCode)
	assert.Equal(t, "Berlin", unit.Shipping.Address.AdminArea2)
	assert.Equal(t, "DE", unit.Shipping.Address.CountryCode)
}

func TestBuildOrderBodyDefaultFeeRate(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "MERCHANT1"}},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	body, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 2}}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	// no store override: platform default 0.10 of 25.00
	assert.Equal(t, "2.50", body.PurchaseUnits[0].PaymentInstruction.PlatformFees[0].Amount.Value)
}

func TestBuildOrderBodyDefaultsCurrencyFromPlatform(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "MERCHANT1"}},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	body, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 1}}},
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", body.PurchaseUnits[0].Amount.CurrencyCode)

	svc.CurrencyCode = ""
	_, err = svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 1}}},
		ShippingAddress: validAddress(),
	})
	require.Error(t, err)
}

func TestBuildOrderBodyRejectsCorruptFeeRate(t *testing.T) {
	// A stored override outside [0,1] would emit a fee outside [0, totalSum]
	// (e.g. -12.50 or 50.00 against a 25.00 total); the build must fail
	// instead of producing such a body.
	for _, rate := range []string{"-0.50", "2.00"} {
		override := dec(rate)
		stores := stubStores{
			"store1": {
				ID: "store1",
				Payment: store.Payment{
					MerchantIDInPayPal: "MERCHANT1",
					PlatformFeeRate:    &override,
				},
			},
		}
		products := stubProducts{
			"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
		}
		svc := testService(stores, products)

		_, err := svc.BuildOrderBody(context.Background(), Input{
			Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 2}}},
			CurrencyCode:    "EUR",
			ShippingAddress: validAddress(),
		})
		require.Error(t, err, "rate %s", rate)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, common.CodeInvalidAmount, appErr.Code)
	}
}

func TestBuildOrderBodyOrdinalsFollowSortedStoreKeys(t *testing.T) {
	stores := stubStores{
		"storeA": {ID: "storeA", Payment: store.Payment{MerchantIDInPayPal: "MA"}},
		"storeB": {ID: "storeB", Payment: store.Payment{MerchantIDInPayPal: "MB"}},
	}
	products := stubProducts{
		"pa": {ID: "pa", StoreID: "storeA", Title: "Candles", Price: dec("4.00")},
		"pb": {ID: "pb", StoreID: "storeB", Title: "Soap", Price: dec("3.00")},
	}
	svc := testService(stores, products)

	body, err := svc.BuildOrderBody(context.Background(), Input{
		Cart: map[string][]Line{
			"storeB": {{ProductID: "pb", Quantity: 1}},
			"storeA": {{ProductID: "pa", Quantity: 1}},
		},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	require.Len(t, body.PurchaseUnits, 2)
	assert.Equal(t, "storeA~0", body.PurchaseUnits[0].ReferenceID)
	assert.Equal(t, "storeB~1", body.PurchaseUnits[1].ReferenceID)
}

func TestBuildOrderBodyMissingPostcode(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "M1"}},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	addr := validAddress()
	addr.Postcode = ""
	_, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 1}}},
		CurrencyCode:    "EUR",
		ShippingAddress: addr,
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
	assert.Contains(t, appErr.Message, "postcode")
}

func TestBuildOrderBodyOneFailingStoreFailsWholeCheckout(t *testing.T) {
	stores := stubStores{
		"storeA": {ID: "storeA", Payment: store.Payment{MerchantIDInPayPal: "MA"}},
	}
	products := stubProducts{
		"pa": {ID: "pa", StoreID: "storeA", Title: "Candles", Price: dec("4.00")},
	}
	svc := testService(stores, products)

	_, err := svc.BuildOrderBody(context.Background(), Input{
		Cart: map[string][]Line{
			"storeA":  {{ProductID: "pa", Quantity: 1}},
			"unknown": {{ProductID: "px", Quantity: 1}},
		},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNotFound, appErr.Code)
}

func TestBuildOrderBodyRejectsEmptyLineItems(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "M1"}},
	}
	svc := testService(stores, stubProducts{})

	_, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestBuildOrderBodyRejectsUnregisteredPayee(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1"},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	_, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 1}}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
	assert.Contains(t, appErr.Message, "payment method")
}

func TestBuildOrderBodyRejectsForeignProduct(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "M1"}},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "otherStore", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)

	_, err := svc.BuildOrderBody(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 1}}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestCreateSubmitsOrderToProcessor(t *testing.T) {
	stores := stubStores{
		"store1": {ID: "store1", Payment: store.Payment{MerchantIDInPayPal: "M1"}},
	}
	products := stubProducts{
		"p1": {ID: "p1", StoreID: "store1", Title: "Honey", Price: dec("10.00")},
	}
	svc := testService(stores, products)
	mock := payment.NewMock()
	svc.Processor = mock

	result, err := svc.Create(context.Background(), Input{
		Cart:            map[string][]Line{"store1": {{ProductID: "p1", Quantity: 2}}},
		CurrencyCode:    "EUR",
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATED", result.Status)

	body, ok := mock.Order(result.ID)
	require.True(t, ok)
	require.Len(t, body.PurchaseUnits, 1)
	assert.Equal(t, "25.00", body.PurchaseUnits[0].Amount.Value)
}

func TestCaptureRequiresOrderID(t *testing.T) {
	svc := testService(stubStores{}, stubProducts{})
	_, err := svc.Capture(context.Background(), CaptureInput{})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}
