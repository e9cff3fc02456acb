package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements HeaderCache, GraphStore and ConversationLog on
// PostgreSQL with pgvector for similarity search.
type PGStore struct {
	conn pgxIConn
}

// NewPGStore creates a PGStore over an existing connection or pool.
func NewPGStore(conn pgxIConn) *PGStore {
	return &PGStore{conn: conn}
}
