package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"foldertree/internal/domain/repositories"
)

// PoolProvider serves every tenant from one writable and one read pool.
// Both may be the same *sql.DB.
type PoolProvider struct {
	write *sql.DB
	read  *sql.DB
}

// NewPoolProvider creates a provider over the given pools
func NewPoolProvider(write, read *sql.DB) *PoolProvider {
	if read == nil {
		read = write
	}
	return &PoolProvider{write: write, read: read}
}

var _ repositories.ConnectionProvider = (*PoolProvider)(nil)

// ReadOnly returns a pooled connection from the read pool
func (p *PoolProvider) ReadOnly(ctx context.Context, contextID int) (*sql.Conn, error) {
	conn, err := p.read.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire read connection for context %d: %w", contextID, err)
	}
	return conn, nil
}

// Writable returns a pooled connection from the writable pool
func (p *PoolProvider) Writable(ctx context.Context, contextID int) (*sql.Conn, error) {
	conn, err := p.write.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire writable connection for context %d: %w", contextID, err)
	}
	return conn, nil
}

// DB exposes the writable pool (schema bootstrap, tests)
func (p *PoolProvider) DB() *sql.DB {
	return p.write
}
