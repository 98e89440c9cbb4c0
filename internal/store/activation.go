package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mysellum/marketplace-api/internal/obs"
)

// Profile bounds a store must satisfy before it can go live.
const (
	titleMinLen       = 10
	titleMaxLen       = 100
	descriptionMinLen = 100
	descriptionMaxLen = 1000
	tagsMin           = 1
	tagsMax           = 15
)

// ActivationSource provides the reads and the single atomic write the
// evaluator needs.
type ActivationSource interface {
	Find(ctx context.Context, id string) (Store, error)
	UpdateActivation(ctx context.Context, id string, steps ActivationSteps, activation bool) error
}

// ProductSource answers whether a store has at least one product. Existence
// query, not a count.
type ProductSource interface {
	StoreHasProduct(ctx context.Context, storeID string) (bool, error)
}

// Evaluator recomputes a store's activation steps whenever a store, product or
// payment-configuration mutation occurs, and persists all five flags in one
// update. It confirms completion only; callers never receive the values.
type Evaluator struct {
	Stores   ActivationSource
	Products ProductSource
	Logger   zerolog.Logger
}

// Evaluate runs all activation checks for the store and persists the result.
func (e *Evaluator) Evaluate(ctx context.Context, storeID string) error {
	st, err := e.Stores.Find(ctx, storeID)
	if err != nil {
		e.count("error")
		return fmt.Errorf("activation: load store %s: %w", storeID, err)
	}

	hasProduct, err := e.Products.StoreHasProduct(ctx, storeID)
	if err != nil {
		e.count("error")
		return fmt.Errorf("activation: query products for store %s: %w", storeID, err)
	}

	steps := ActivationSteps{
		ProfileComplete:         checkProfileComplete(st),
		MinOneProduct:           hasProduct,
		ShippingRegistered:      checkShippingRegistered(st),
		PaymentMethodRegistered: checkPaymentMethodRegistered(st),
	}
	activation := steps.All()

	if err := e.Stores.UpdateActivation(ctx, storeID, steps, activation); err != nil {
		e.count("error")
		return fmt.Errorf("activation: persist steps for store %s: %w", storeID, err)
	}

	e.Logger.Info().
		Str("store_id", storeID).
		Bool(string(StepProfileComplete), steps.ProfileComplete).
		Bool(string(StepMinOneProduct), steps.MinOneProduct).
		Bool(string(StepShippingRegistered), steps.ShippingRegistered).
		Bool(string(StepPaymentRegistered), steps.PaymentMethodRegistered).
		Bool("activation", activation).
		Msg("store activation evaluated")
	e.count("success")
	return nil
}

func (e *Evaluator) count(result string) {
	if obs.ActivationRunTotal != nil {
		obs.ActivationRunTotal.WithLabelValues(result).Inc()
	}
}

func checkProfileComplete(st Store) bool {
	// Bounds count characters, not bytes; umlauts must not inflate a title
	// past the minimum.
	titleLen := utf8.RuneCountInString(st.Profile.Title)
	if titleLen < titleMinLen || titleLen > titleMaxLen {
		return false
	}
	descLen := utf8.RuneCountInString(st.Profile.Description)
	if descLen < descriptionMinLen || descLen > descriptionMaxLen {
		return false
	}
	if len(st.Profile.Tags) < tagsMin || len(st.Profile.Tags) > tagsMax {
		return false
	}
	// Image-count validation is documented but currently disabled.
	return true
}

// checkShippingRegistered is a stub pending real shipping-configuration checks.
func checkShippingRegistered(Store) bool {
	return true
}

func checkPaymentMethodRegistered(st Store) bool {
	return st.Payment.MerchantIDInPayPal != ""
}
