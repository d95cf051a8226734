package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
	"foldertree/internal/events"
)

// base carries what every repository in this package needs
type base struct {
	provider repositories.ConnectionProvider
	txm      *TransactionManager
	tables   *TableNames
	dialect  Dialect
	events   events.Sink
	logger   *slog.Logger
}

func newBase(config *RepositoryConfig) base {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := config.Events
	if sink == nil {
		sink = events.NopSink{}
	}
	tables := config.Tables
	if tables == nil {
		tables = NewTableNames("")
	}
	return base{
		provider: config.Provider,
		txm:      NewTransactionManager(config.Provider, logger),
		tables:   tables,
		dialect:  config.Dialect,
		events:   sink,
		logger:   logger,
	}
}

// q formats table names into query and rebinds its placeholders
func (b *base) q(query string, tables ...interface{}) string {
	return b.dialect.Rebind(fmt.Sprintf(query, tables...))
}

func (b *base) read(ctx context.Context, scope models.ScopeKey, fn func(db repositories.DBTX) error) error {
	return read(ctx, b.provider, scope.ContextID, fn)
}

func (b *base) write(ctx context.Context, scope models.ScopeKey, fn repositories.TxFn) error {
	return b.txm.ExecTx(ctx, scope.ContextID, fn)
}

// collectStrings drains a single string column
func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func appendArgs(args []interface{}, more ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+len(more))
	out = append(out, args...)
	return append(out, more...)
}
