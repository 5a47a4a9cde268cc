// Package warehouse holds the single database session a pipeline procedure
// runs on. Redshift speaks the PostgreSQL wire protocol but not its extended
// query flow, so statements are sent with the simple protocol.
package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// ErrClosed is returned by calls on a closed session.
var ErrClosed = errors.New("warehouse session closed")

// Session executes statements and commits them. Exec opens a transaction
// when none is pending; Commit ends it.
type Session interface {
	Exec(ctx context.Context, sql string) error
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
}

// Conn is a Session over one pgx connection.
type Conn struct {
	conn *pgx.Conn
	tx   pgx.Tx
}

var _ Session = (*Conn)(nil)

// Connect opens a connection described by a key=value DSN such as the one
// built by config.Config.DSN.
func Connect(ctx context.Context, dsn string) (*Conn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Conn{conn: conn}, nil
}

// Exec runs sql inside the pending transaction. A failed statement rolls the
// transaction back before the error is returned.
func (c *Conn) Exec(ctx context.Context, sql string) error {
	if c.conn == nil {
		return ErrClosed
	}
	if c.tx == nil {
		tx, err := c.conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		c.tx = tx
	}

	if _, err := c.tx.Exec(ctx, sql); err != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
		return err
	}
	return nil
}

// Commit commits the pending transaction. It is a no-op when nothing is pending.
func (c *Conn) Commit(ctx context.Context) error {
	if c.conn == nil {
		return ErrClosed
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Count returns the number of rows in table.
func (c *Conn) Count(ctx context.Context, table string) (int64, error) {
	if c.conn == nil {
		return 0, ErrClosed
	}
	var n int64
	err := c.conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+pq.QuoteIdentifier(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Close rolls back anything uncommitted and closes the connection.
func (c *Conn) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	if c.tx != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}
