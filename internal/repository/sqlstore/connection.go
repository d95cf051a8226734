package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
	"foldertree/internal/events"
)

// Driver names accepted by Open
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Provider repositories.ConnectionProvider
	Tables   *TableNames
	Dialect  Dialect
	Events   events.Sink
	Logger   *slog.Logger
}

// PoolConfig sizes the connection pools
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// CreateConnectionPool creates a new pgx connection pool with automatic PgBouncer compatibility.
//
// Port 6543 is treated as a transaction pooler that does not support prepared
// statements: unless default_query_exec_mode is given in the connection string,
// QueryExecModeCacheDescribe is used there. Direct connections keep the default
// statement cache.
func CreateConnectionPool(ctx context.Context, databaseURL string, pc PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// OpenSQLite opens an SQLite database with WAL journaling and a busy timeout
// applied to every pooled connection.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// sqliteDSN adds the pragmas every connection needs unless the DSN already sets them
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(10000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")
	pragmas.Set("_txlock", "immediate")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + pragmas.Encode()
}

// Database bundles the pools behind a PoolProvider together with its dialect
type Database struct {
	Provider *PoolProvider
	Dialect  Dialect
	closers  []func()
}

// Close releases every pool
func (d *Database) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Open connects to driver at dsn. readDSN may point at a read replica;
// when empty, reads share the writable pool.
func Open(ctx context.Context, driver, dsn, readDSN string, pc PoolConfig) (*Database, error) {
	switch driver {
	case DriverPostgres:
		d := &Database{Dialect: DialectPostgres}
		writePool, err := CreateConnectionPool(ctx, dsn, pc)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, writePool.Close)
		write := stdlib.OpenDBFromPool(writePool)
		d.closers = append(d.closers, func() { write.Close() })

		read := write
		if readDSN != "" {
			readPool, err := CreateConnectionPool(ctx, readDSN, pc)
			if err != nil {
				d.Close()
				return nil, fmt.Errorf("read replica: %w", err)
			}
			d.closers = append(d.closers, readPool.Close)
			read = stdlib.OpenDBFromPool(readPool)
			d.closers = append(d.closers, func() { read.Close() })
		}
		d.Provider = NewPoolProvider(write, read)
		return d, nil

	case DriverSQLite:
		db, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if pc.MaxConns > 0 {
			db.SetMaxOpenConns(int(pc.MaxConns))
		}
		return &Database{
			Provider: NewPoolProvider(db, db),
			Dialect:  DialectSQLite,
			closers:  []func(){func() { db.Close() }},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// scopeOf is a logging helper
func scopeOf(scope models.ScopeKey) slog.Attr {
	return slog.Group("scope",
		"context_id", scope.ContextID,
		"tree_id", scope.TreeID,
		"user_id", scope.UserID,
		"storage", scope.Storage.String(),
	)
}
