package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/conversation"
)

// DB is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// query methods run pooled or inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements the Querier interfaces consumed by the project,
// conversation, document and knowledge packages.
type Queries struct {
	db DB
}

// NewQueries creates a Queries bound to a pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool}
}

// WithTx rebinds the queries to a transaction started by the
// conversation store. The Tx must be a pgx.Tx.
func (q *Queries) WithTx(tx conversation.Tx) conversation.Querier {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		panic(fmt.Sprintf("BUG: WithTx requires a pgx.Tx, got %T", tx))
	}
	return &Queries{db: pgxTx}
}
