package postgres

import (
	"context"

	"github.com/addisride/dispatch/pkg/trm"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations the repositories need; both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxorDB returns the transaction stored in ctx by the transaction manager,
// or the pool when no transaction is active.
func TxorDB(ctx context.Context, db *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(trm.TxKey).(pgx.Tx); ok {
		return tx
	}
	return db
}
