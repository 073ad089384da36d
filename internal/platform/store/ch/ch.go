// Package ch provides a ClickHouse client used as the aggregate-metrics sink:
// one row per minute per strategy, written by the Supervisor's stats loop.
package ch

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config configures the ClickHouse connection
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CH wraps a clickhouse-go native connection
type CH struct {
	conn clickhouse.Conn
}

// Open dials ClickHouse using the native protocol and verifies connectivity
func Open(ctx context.Context, cfg Config) (*CH, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Insert appends one row of named columns to table via a single-row batch.
// data must be a map[string]any.
func (c *CH) Insert(ctx context.Context, table string, data any) error {
	row, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("ch: unsupported insert shape (want map[string]any)")
	}

	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}

	batch, err := c.conn.PrepareBatch(ctx, buildInsertQuery(table, cols))
	if err != nil {
		return fmt.Errorf("ch: prepare batch: %w", err)
	}
	args := make([]any, len(cols))
	for i, k := range cols {
		args[i] = row[k]
	}
	if err := batch.Append(args...); err != nil {
		return fmt.Errorf("ch: append row: %w", err)
	}
	return batch.Send()
}

func buildInsertQuery(table string, cols []string) string {
	q := "INSERT INTO " + table + " ("
	for i, c := range cols {
		if i > 0 {
			q += ", "
		}
		q += c
	}
	q += ")"
	return q
}

// Query runs a read query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ch: query: %w", err)
	}
	return &driverRows{r: rows}, nil
}

// Close closes the underlying connection
func (c *CH) Close() error { return c.conn.Close() }

type driverRows struct{ r clickhouse.Rows }

func (r *driverRows) Next() bool             { return r.r.Next() }
func (r *driverRows) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *driverRows) Err() error             { return r.r.Err() }
func (r *driverRows) Close()                 { _ = r.r.Close() }
func (r *driverRows) Columns() []string      { return r.r.Columns() }
