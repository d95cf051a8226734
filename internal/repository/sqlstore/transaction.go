package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"foldertree/internal/domain"
	"foldertree/internal/domain/repositories"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	provider repositories.ConnectionProvider
	logger   *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(provider repositories.ConnectionProvider, logger *slog.Logger) *TransactionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionManager{provider: provider, logger: logger}
}

var _ repositories.TransactionManager = (*TransactionManager)(nil)

// ExecTx executes a function within a transaction on a dedicated writable connection
func (tm *TransactionManager) ExecTx(ctx context.Context, contextID int, fn repositories.TxFn) error {
	conn, err := tm.provider.Writable(ctx, contextID)
	if err != nil {
		return &domain.StorageError{Op: "acquire connection", Err: err}
	}
	defer conn.Close()
	return tm.run(ctx, conn, nil, contextID, fn)
}

// ReadTx executes a function within a read-only transaction, so every read
// in fn sees the same snapshot. Nothing is committed.
func (tm *TransactionManager) ReadTx(ctx context.Context, contextID int, fn repositories.TxFn) error {
	conn, err := tm.provider.ReadOnly(ctx, contextID)
	if err != nil {
		return &domain.StorageError{Op: "acquire connection", Err: err}
	}
	defer conn.Close()
	return tm.run(ctx, conn, &sql.TxOptions{ReadOnly: true}, contextID, fn)
}

func (tm *TransactionManager) run(ctx context.Context, conn *sql.Conn, opts *sql.TxOptions, contextID int, fn repositories.TxFn) (err error) {
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return &domain.StorageError{Op: "begin transaction", Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			err = &domain.UnexpectedError{Op: "transaction", Err: fmt.Errorf("panic: %v", p)}
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			tm.logger.Error("rollback failed", "context_id", contextID, "error", rbErr)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if opts != nil && opts.ReadOnly {
		return nil
	}

	if err = tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit transaction", Err: err}
	}
	committed = true

	return nil
}

// read runs fn on a read-only connection that is released before returning
func read(ctx context.Context, provider repositories.ConnectionProvider, contextID int, fn func(db repositories.DBTX) error) error {
	conn, err := provider.ReadOnly(ctx, contextID)
	if err != nil {
		return &domain.StorageError{Op: "acquire connection", Err: err}
	}
	defer conn.Close()
	return fn(conn)
}

// withSavepoint runs fn inside a savepoint of the surrounding transaction.
// A failing fn is rolled back alone and the transaction stays usable.
func withSavepoint(ctx context.Context, tx repositories.DBTX, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint %s: %w", name, rbErr))
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint %s: %w", name, relErr))
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}
