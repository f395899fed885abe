// Package dbx holds the minimal pgx surface the repositories depend on, so
// the same repository can run on the pool or inside a transaction.
package dbx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is a Querier that can open a transaction.
type TxBeginner interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// IsUniqueViolation reports whether err is a postgres 23505, optionally
// restricted to one constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pgErr, ok := asPgError(err)
	if !ok || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a postgres 23503.
func IsForeignKeyViolation(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == "23503"
}
