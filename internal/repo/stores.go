package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/store"
)

// Stores persists store entities in Postgres.
type Stores struct {
	DB DB
}

const storeColumns = `
	id, owner_email, title, subtitle, description, tags, images,
	address_line1, postcode, city, country, lat, lng,
	merchant_id_paypal, platform_fee_rate::text, avg_rating::text,
	profile_complete, min_one_product, shipping_registered,
	payment_method_registered, activation, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (store.Store, error) {
	var (
		st      store.Store
		feeRate *string
		avg     string
	)
	err := row.Scan(
		&st.ID, &st.OwnerEmail, &st.Profile.Title, &st.Profile.Subtitle,
		&st.Profile.Description, &st.Profile.Tags, &st.Profile.Images,
		&st.Address.AddressLine1, &st.Address.Postcode, &st.Address.City,
		&st.Address.Country, &st.Location.Lat, &st.Location.Lng,
		&st.Payment.MerchantIDInPayPal, &feeRate, &avg,
		&st.Steps.ProfileComplete, &st.Steps.MinOneProduct,
		&st.Steps.ShippingRegistered, &st.Steps.PaymentMethodRegistered,
		&st.Activation, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return store.Store{}, err
	}
	if feeRate != nil {
		rate, err := parseNumeric(*feeRate)
		if err != nil {
			return store.Store{}, fmt.Errorf("parse platform_fee_rate: %w", err)
		}
		st.Payment.PlatformFeeRate = &rate
	}
	avgDec, err := parseNumeric(avg)
	if err != nil {
		return store.Store{}, fmt.Errorf("parse avg_rating: %w", err)
	}
	st.AvgRating = avgDec.String()
	return st, nil
}

// CreateWithOwner inserts the store and links it to its owner in one
// transaction. A user owns at most one store.
func (r Stores) CreateWithOwner(ctx context.Context, st store.Store) (store.Store, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return store.Store{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownedStoreID *string
	err = tx.QueryRow(ctx,
		`SELECT owned_store_id FROM users WHERE email = $1 FOR UPDATE`,
		st.OwnerEmail,
	).Scan(&ownedStoreID)
	if err != nil {
		return store.Store{}, notFoundOr(err, "user not found")
	}
	if ownedStoreID != nil {
		return store.Store{}, common.InvalidInput("user already owns a store", nil)
	}

	st.ID = uuid.NewString()
	var feeRate *decimal.Decimal = st.Payment.PlatformFeeRate
	err = tx.QueryRow(ctx, `
		INSERT INTO stores (
			id, owner_email, title, subtitle, description, tags, images,
			address_line1, postcode, city, country, lat, lng,
			merchant_id_paypal, platform_fee_rate
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		st.ID, st.OwnerEmail, st.Profile.Title, st.Profile.Subtitle,
		st.Profile.Description, st.Profile.Tags, st.Profile.Images,
		st.Address.AddressLine1, st.Address.Postcode, st.Address.City,
		st.Address.Country, st.Location.Lat, st.Location.Lng,
		st.Payment.MerchantIDInPayPal, feeRate,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return store.Store{}, fmt.Errorf("insert store: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET owned_store_id = $1, updated_at = now() WHERE email = $2`,
		st.ID, st.OwnerEmail,
	); err != nil {
		return store.Store{}, fmt.Errorf("link owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Store{}, fmt.Errorf("commit: %w", err)
	}
	st.AvgRating = "0"
	return st, nil
}

// Find returns one store by id.
func (r Stores) Find(ctx context.Context, id string) (store.Store, error) {
	st, err := scanStore(r.DB.QueryRow(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		return store.Store{}, notFoundOr(err, "store not found")
	}
	return st, nil
}

// List returns all stores, newest first.
func (r Stores) List(ctx context.Context) ([]store.Store, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+storeColumns+` FROM stores ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStores(rows)
}

// FilterByTags returns stores whose tags contain every requested tag.
func (r Stores) FilterByTags(ctx context.Context, tags []string) ([]store.Store, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE tags @> $1 ORDER BY created_at DESC`, tags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStores(rows)
}

func collectStores(rows pgx.Rows) ([]store.Store, error) {
	var out []store.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Update overwrites the store's mutable fields.
func (r Stores) Update(ctx context.Context, st store.Store) (store.Store, error) {
	updated, err := scanStore(r.DB.QueryRow(ctx, `
		UPDATE stores SET
			title = $2, subtitle = $3, description = $4, tags = $5, images = $6,
			address_line1 = $7, postcode = $8, city = $9, country = $10,
			lat = $11, lng = $12, platform_fee_rate = $13, updated_at = now()
		WHERE id = $1
		RETURNING `+storeColumns,
		st.ID, st.Profile.Title, st.Profile.Subtitle, st.Profile.Description,
		st.Profile.Tags, st.Profile.Images,
		st.Address.AddressLine1, st.Address.Postcode, st.Address.City,
		st.Address.Country, st.Location.Lat, st.Location.Lng,
		st.Payment.PlatformFeeRate,
	))
	if err != nil {
		return store.Store{}, notFoundOr(err, "store not found")
	}
	return updated, nil
}

// DeleteWithOwner removes the store and unlinks it from its owner in one
// transaction.
func (r Stores) DeleteWithOwner(ctx context.Context, id, ownerEmail string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("store not found")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET owned_store_id = NULL, updated_at = now() WHERE email = $1`,
		ownerEmail,
	); err != nil {
		return fmt.Errorf("unlink owner: %w", err)
	}
	return tx.Commit(ctx)
}

// SetMerchantID stores the validated processor merchant id.
func (r Stores) SetMerchantID(ctx context.Context, id, merchantID string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE stores SET merchant_id_paypal = $2, updated_at = now() WHERE id = $1`,
		id, merchantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("store not found")
	}
	return nil
}

// UpdateActivation persists all four step flags plus the derived overall
// value in a single statement.
func (r Stores) UpdateActivation(ctx context.Context, id string, steps store.ActivationSteps, activation bool) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE stores SET
			profile_complete = $2, min_one_product = $3,
			shipping_registered = $4, payment_method_registered = $5,
			activation = $6, updated_at = now()
		WHERE id = $1`,
		id, steps.ProfileComplete, steps.MinOneProduct,
		steps.ShippingRegistered, steps.PaymentMethodRegistered, activation)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("store not found")
	}
	return nil
}

// OwnerEmail returns the store owner's email.
func (r Stores) OwnerEmail(ctx context.Context, storeID string) (string, error) {
	var owner string
	err := r.DB.QueryRow(ctx,
		`SELECT owner_email FROM stores WHERE id = $1`, storeID).Scan(&owner)
	if err != nil {
		return "", notFoundOr(err, "store not found")
	}
	return owner, nil
}

// SetAvgRating is used by the reviews repository inside its transactions; it
// exists here so rating persistence stays with the store row.
func SetAvgRating(ctx context.Context, tx pgx.Tx, storeID string, avg decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		`UPDATE stores SET avg_rating = $2, updated_at = now() WHERE id = $1`,
		storeID, avg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("store not found")
	}
	return nil
}
