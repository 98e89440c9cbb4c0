package checkout

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/events"
	"github.com/mysellum/marketplace-api/internal/obs"
	"github.com/mysellum/marketplace-api/internal/payment"
	"github.com/mysellum/marketplace-api/internal/pricing"
	"github.com/mysellum/marketplace-api/internal/product"
	"github.com/mysellum/marketplace-api/internal/shipping"
	"github.com/mysellum/marketplace-api/internal/store"
)

// StoreSource resolves participating stores.
type StoreSource interface {
	Find(ctx context.Context, id string) (store.Store, error)
}

// ProductSource resolves line-item products for pricing.
type ProductSource interface {
	Find(ctx context.Context, id string) (product.Product, error)
}

// Service builds multi-seller order bodies and drives them through the
// payment processor. Purchase units are constructed once per checkout attempt
// and discarded after the processor request; the processor is the source of
// truth for order state.
type Service struct {
	Stores             StoreSource
	Products           ProductSource
	Shipping           shipping.Resolver
	Calc               pricing.Calculator
	Processor          payment.Processor
	BrandName          string
	CurrencyCode       string
	CountryCode        string
	PlatformMerchantID string
	PlatformEmail      string
	Events             *events.Bus
	Logger             zerolog.Logger
}

// BuildOrderBody assembles the complete create-order payload for the cart.
// Store keys are processed in sorted order so the reference-id ordinal suffix
// is stable across retries; units are assembled concurrently but placed at
// their key's position. Any single store failing aborts the whole build.
func (s *Service) BuildOrderBody(ctx context.Context, in Input) (payment.OrderBody, error) {
	if len(in.Cart) == 0 {
		return payment.OrderBody{}, common.InvalidInput("cart must contain at least one store", nil)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.CurrencyCode))
	}
	if currency == "" {
		return payment.OrderBody{}, common.InvalidInput("currency code is required", nil)
	}

	storeIDs := make([]string, 0, len(in.Cart))
	for id := range in.Cart {
		storeIDs = append(storeIDs, id)
	}
	sort.Strings(storeIDs)

	// Resolve and pre-validate every store before pricing anything, so an
	// unknown store or unregistered payee never costs a processor call.
	resolved := make([]store.Store, len(storeIDs))
	for i, id := range storeIDs {
		lines := in.Cart[id]
		if len(lines) == 0 {
			return payment.OrderBody{}, common.InvalidInput(fmt.Sprintf("store %s has no line items", id), nil)
		}
		for _, line := range lines {
			if line.Quantity < 1 {
				return payment.OrderBody{}, common.InvalidInput(
					fmt.Sprintf("quantity for product %s must be at least 1", line.ProductID), nil)
			}
		}
		st, err := s.Stores.Find(ctx, id)
		if err != nil {
			return payment.OrderBody{}, err
		}
		if strings.TrimSpace(st.Payment.MerchantIDInPayPal) == "" {
			return payment.OrderBody{}, common.InvalidInput(
				fmt.Sprintf("store %s has no payment method registered", id), nil)
		}
		resolved[i] = st
	}

	units := make([]payment.PurchaseUnit, len(storeIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range storeIDs {
		g.Go(func() error {
			unit, err := s.assembleUnit(gctx, i, resolved[i], in.Cart[id], currency, in.ShippingAddress)
			if err != nil {
				return err
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return payment.OrderBody{}, err
	}

	return payment.OrderBody{
		Intent: payment.IntentCapture,
		ApplicationContext: payment.ApplicationContext{
			BrandName:          s.BrandName,
			LandingPage:        payment.LandingPageBilling,
			ShippingPreference: payment.ShippingPreferenceProvided,
			UserAction:         payment.UserActionContinue,
		},
		PurchaseUnits: units,
	}, nil
}

// assembleUnit prices one store's share of the order and assembles its
// purchase unit. The computation order is fixed: per-item tax on the listed
// unit price, sums extended by quantity, one shipping quote, totals rounded
// once after summation.
func (s *Service) assembleUnit(ctx context.Context, ordinal int, st store.Store, lines []Line, currency string, addr ShippingAddress) (payment.PurchaseUnit, error) {
	var (
		gross    decimal.Decimal
		taxTotal decimal.Decimal
		items    = make([]payment.Item, 0, len(lines))
		parcel   = shipping.Parcel{StoreID: st.ID, Lines: make([]shipping.Line, 0, len(lines))}
	)
	for _, line := range lines {
		p, err := s.Products.Find(ctx, line.ProductID)
		if err != nil {
			return payment.PurchaseUnit{}, err
		}
		if p.StoreID != st.ID {
			return payment.PurchaseUnit{}, common.InvalidInput(
				fmt.Sprintf("product %s does not belong to store %s", p.ID, st.ID), nil)
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		tax := s.Calc.ItemTax(p.Price)
		net := p.Price.Sub(tax)
		gross = gross.Add(p.Price.Mul(qty))
		taxTotal = taxTotal.Add(tax.Mul(qty))
		items = append(items, payment.Item{
			Name:        p.Title,
			Description: p.Description,
			UnitAmount:  payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(net)},
			Tax:         payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(tax)},
			Quantity:    strconv.Itoa(line.Quantity),
		})
		parcel.Lines = append(parcel.Lines, shipping.Line{ProductID: p.ID, Quantity: line.Quantity})
	}

	shippingCost, err := s.Shipping.Cost(ctx, parcel)
	if err != nil {
		return payment.PurchaseUnit{}, common.UpstreamFailure("resolve shipping cost", err)
	}

	// Rounding happens once after summation so per-term rounding error never
	// compounds into the total.
	totalSum := gross.Add(shippingCost).Round(2)
	itemTotal := gross.Sub(taxTotal)

	feeRate := s.Calc.FeeRateOrDefault(st.Payment.PlatformFeeRate)
	fee, err := s.Calc.PlatformFee(totalSum, feeRate)
	if err != nil {
		return payment.PurchaseUnit{}, err
	}

	if err := validateAddress(addr); err != nil {
		return payment.PurchaseUnit{}, err
	}

	return payment.PurchaseUnit{
		ReferenceID: fmt.Sprintf("%s~%d", st.ID, ordinal),
		Payee:       payment.Payee{MerchantID: st.Payment.MerchantIDInPayPal},
		Amount: payment.Amount{
			CurrencyCode: currency,
			Value:        pricing.Format(totalSum),
			Breakdown: payment.Breakdown{
				ItemTotal: payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(itemTotal)},
				Shipping:  payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(shippingCost)},
				TaxTotal:  payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(taxTotal)},
			},
		},
		Items: items,
		Shipping: payment.Shipping{
			Name: payment.ShippingName{FullName: strings.TrimSpace(addr.FirstName + " " + addr.LastName)},
			Address: payment.ShippingAddress{
				AddressLine1: addr.AddressLine1,
				AddressLine2: addr.AddressLine2,
				AdminArea2:   addr.City,
				AdminArea1:   addr.State,
				PostalCode:   addr.Postcode,
				CountryCode:  s.CountryCode,
			},
		},
		PaymentInstruction: payment.PaymentInstruction{
			DisbursementMode: payment.DisbursementModeInstant,
			PlatformFees: []payment.PlatformFee{{
				Amount: payment.MoneyValue{CurrencyCode: currency, Value: pricing.Format(fee)},
				Payee:  payment.Payee{MerchantID: s.PlatformMerchantID, EmailAddress: s.PlatformEmail},
			}},
		},
	}, nil
}

// Create builds the order body and submits it to the processor.
func (s *Service) Create(ctx context.Context, in Input) (payment.OrderResult, error) {
	body, err := s.BuildOrderBody(ctx, in)
	if err != nil {
		if obs.OrderBodyTotal != nil {
			obs.OrderBodyTotal.WithLabelValues("error").Inc()
		}
		return payment.OrderResult{}, err
	}
	if obs.OrderBodyTotal != nil {
		obs.OrderBodyTotal.WithLabelValues("success").Inc()
	}
	if obs.PurchaseUnitTotal != nil {
		obs.PurchaseUnitTotal.Add(float64(len(body.PurchaseUnits)))
	}

	result, err := s.Processor.CreateOrder(ctx, body)
	if err != nil {
		return payment.OrderResult{}, err
	}
	for _, unit := range body.PurchaseUnits {
		storeID, _, _ := strings.Cut(unit.ReferenceID, "~")
		s.emit(ctx, events.TopicOrderBodyBuilt, storeID, map[string]any{
			"orderId":  result.ID,
			"totalSum": unit.Amount.Value,
		})
	}
	s.Logger.Info().
		Str("order_id", result.ID).
		Int("purchase_units", len(body.PurchaseUnits)).
		Msg("processor order created")
	return result, nil
}

// Capture captures an approved processor order.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (payment.OrderResult, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return payment.OrderResult{}, common.InvalidInput("order id is required", nil)
	}
	result, err := s.Processor.CaptureOrder(ctx, in.OrderID)
	if err != nil {
		return payment.OrderResult{}, err
	}
	s.Logger.Info().Str("order_id", result.ID).Str("status", result.Status).Msg("processor order captured")
	return result, nil
}

// Refund refunds a capture, fully when no value is given.
func (s *Service) Refund(ctx context.Context, in RefundInput) error {
	if strings.TrimSpace(in.CaptureID) == "" {
		return common.InvalidInput("capture id is required", nil)
	}
	if err := s.Processor.RefundCapture(ctx, in.CaptureID, in.Value, in.CurrencyCode); err != nil {
		return err
	}
	s.Logger.Info().Str("capture_id", in.CaptureID).Msg("capture refunded")
	return nil
}

func (s *Service) emit(ctx context.Context, topic, storeID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Emit(ctx, topic, storeID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

// validateAddress checks the required shipping-address fields and names the
// first missing one.
func validateAddress(addr ShippingAddress) error {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", addr.FirstName},
		{"lastName", addr.LastName},
		{"addressLine1", addr.AddressLine1},
		{"city", addr.City},
		{"postcode", addr.Postcode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return common.InvalidInput(
				fmt.Sprintf("no %s was provided with the shipping address", field.name), nil)
		}
	}
	return nil
}
