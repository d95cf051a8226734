package repositories

import "context"

// TxFn is a function that runs within a transaction.
// tx must be passed to every sub-operation so they share atomicity.
type TxFn func(ctx context.Context, tx DBTX) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx acquires a writable connection for contextID, runs fn in a
	// transaction and commits on success. Any error or panic rolls back.
	ExecTx(ctx context.Context, contextID int, fn TxFn) error

	// ReadTx runs fn in a read-only transaction on a read connection and
	// rolls it back afterwards.
	ReadTx(ctx context.Context, contextID int, fn TxFn) error
}
