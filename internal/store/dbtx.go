package store

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so the same query functions
// serve standalone reads and multi-statement transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// variantKey maps an optional variant to its column value; 0 means "no variant".
func variantKey(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// variantPtr is the inverse of variantKey.
func variantPtr(key int64) *int64 {
	if key == 0 {
		return nil
	}
	return &key
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
