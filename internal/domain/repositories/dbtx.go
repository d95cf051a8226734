package repositories

import (
	"context"
	"database/sql"
)

// DBTX is an interface that *sql.Conn, *sql.DB and *sql.Tx implement.
// Operations taking a DBTX join whatever transaction the handle carries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ConnectionProvider hands out pooled connections per tenant (context id).
// Closing a returned connection gives it back to the pool.
type ConnectionProvider interface {
	// ReadOnly returns a connection for queries that do not write
	ReadOnly(ctx context.Context, contextID int) (*sql.Conn, error)

	// Writable returns a connection that may open write transactions
	Writable(ctx context.Context, contextID int) (*sql.Conn, error)
}
