package repo

import (
	"context"
	"fmt"
	"strings"
)

// Users persists marketplace users. Identity arrives from the gateway, so
// this repository only keeps profile data and the owned-store link.
type Users struct {
	DB DB
}

// Ensure creates the user row on first sight of a gateway identity.
func (r Users) Ensure(ctx context.Context, email, firstName, lastName string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users (email, first_name, last_name)
		VALUES ($1,$2,$3)
		ON CONFLICT (email) DO NOTHING`,
		strings.ToLower(email), firstName, lastName)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// UserName returns the user's first and last name.
func (r Users) UserName(ctx context.Context, email string) (string, string, error) {
	var first, last string
	err := r.DB.QueryRow(ctx,
		`SELECT first_name, last_name FROM users WHERE email = $1`,
		strings.ToLower(email)).Scan(&first, &last)
	if err != nil {
		return "", "", notFoundOr(err, "user not found")
	}
	return first, last, nil
}

// OwnedStoreID returns the id of the store the user owns, empty when none.
func (r Users) OwnedStoreID(ctx context.Context, email string) (string, error) {
	var storeID *string
	err := r.DB.QueryRow(ctx,
		`SELECT owned_store_id FROM users WHERE email = $1`,
		strings.ToLower(email)).Scan(&storeID)
	if err != nil {
		return "", notFoundOr(err, "user not found")
	}
	if storeID == nil {
		return "", nil
	}
	return *storeID, nil
}
