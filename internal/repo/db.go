package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/common"
)

// DB is the subset of pgxpool.Pool the repositories use. Transactions opened
// through Begin satisfy the same query surface.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound(message)
	}
	return err
}

// parseNumeric converts a numeric column selected with a ::text cast.
func parseNumeric(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
