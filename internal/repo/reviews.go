package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/reviews"
)

// Reviews persists store reviews. Review ids are per-store ordinals; every
// mutation recomputes the store's average rating inside the same transaction.
type Reviews struct {
	DB DB
}

// Add inserts a review and returns it together with the new average rating.
func (r Reviews) Add(ctx context.Context, review reviews.Review) (reviews.Review, string, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return reviews.Review{}, "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the store row to serialize ordinal assignment per store.
	var storeID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM stores WHERE id = $1 FOR UPDATE`, review.StoreID).Scan(&storeID)
	if err != nil {
		return reviews.Review{}, "", notFoundOr(err, "store not found")
	}

	var ordinal int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM reviews WHERE store_id = $1`,
		review.StoreID).Scan(&ordinal)
	if err != nil {
		return reviews.Review{}, "", fmt.Errorf("next ordinal: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (store_id, ordinal, user_email, user_name, rating, text)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		review.StoreID, ordinal, review.UserEmail, review.UserName,
		review.Rating, review.Text,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return reviews.Review{}, "", fmt.Errorf("insert review: %w", err)
	}
	review.ID = strconv.Itoa(ordinal)

	avg, err := recomputeAvgRating(ctx, tx, review.StoreID)
	if err != nil {
		return reviews.Review{}, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return reviews.Review{}, "", fmt.Errorf("commit: %w", err)
	}
	return review, avg, nil
}

// Update edits the author's own review and returns the new average rating.
func (r Reviews) Update(ctx context.Context, storeID, reviewID, userEmail string, rating int, text string) (reviews.Review, string, error) {
	ordinal, err := strconv.Atoi(reviewID)
	if err != nil {
		return reviews.Review{}, "", common.InvalidInput("invalid review id", nil)
	}
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return reviews.Review{}, "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	review := reviews.Review{ID: reviewID, StoreID: storeID, UserEmail: userEmail}
	err = tx.QueryRow(ctx, `
		UPDATE reviews SET rating = $4, text = $5, updated_at = now()
		WHERE store_id = $1 AND ordinal = $2 AND user_email = $3
		RETURNING user_name, rating, text, created_at, updated_at`,
		storeID, ordinal, userEmail, rating, text,
	).Scan(&review.UserName, &review.Rating, &review.Text, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return reviews.Review{}, "", notFoundOr(err, "review not found")
	}

	avg, err := recomputeAvgRating(ctx, tx, storeID)
	if err != nil {
		return reviews.Review{}, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return reviews.Review{}, "", fmt.Errorf("commit: %w", err)
	}
	return review, avg, nil
}

// Delete removes the author's own review and returns the new average rating.
// A non-author's attempt matches no row and reports not-found.
func (r Reviews) Delete(ctx context.Context, storeID, reviewID, userEmail string) (string, error) {
	ordinal, err := strconv.Atoi(reviewID)
	if err != nil {
		return "", common.InvalidInput("invalid review id", nil)
	}
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM reviews WHERE store_id = $1 AND ordinal = $2 AND user_email = $3`,
		storeID, ordinal, userEmail)
	if err != nil {
		return "", fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", common.NotFound("review not found")
	}

	avg, err := recomputeAvgRating(ctx, tx, storeID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return avg, nil
}

// ListByStore returns a page of reviews, newest first.
func (r Reviews) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]reviews.Review, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ordinal, store_id, user_email, user_name, rating, text, created_at, updated_at
		FROM reviews WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		storeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reviews.Review
	for rows.Next() {
		var (
			review  reviews.Review
			ordinal int
		)
		if err := rows.Scan(
			&ordinal, &review.StoreID, &review.UserEmail, &review.UserName,
			&review.Rating, &review.Text, &review.CreatedAt, &review.UpdatedAt,
		); err != nil {
			return nil, err
		}
		review.ID = strconv.Itoa(ordinal)
		out = append(out, review)
	}
	return out, rows.Err()
}

// UserHasReview reports whether the user already reviewed the store.
func (r Reviews) UserHasReview(ctx context.Context, storeID, userEmail string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE store_id = $1 AND user_email = $2)`,
		storeID, userEmail).Scan(&exists)
	return exists, err
}

func recomputeAvgRating(ctx context.Context, tx pgx.Tx, storeID string) (string, error) {
	var raw string
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::text FROM reviews WHERE store_id = $1`,
		storeID).Scan(&raw)
	if err != nil {
		return "", fmt.Errorf("average rating: %w", err)
	}
	avg, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("parse average rating: %w", err)
	}
	avg = avg.Round(2)
	if err := SetAvgRating(ctx, tx, storeID, avg); err != nil {
		return "", err
	}
	return avg.String(), nil
}
