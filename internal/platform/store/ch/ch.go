// Package ch provides a clickhouse client for append-only audit rows
package ch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL      string
	Database string
	AppName  string
	Tag      string
}

// CH is a thin wrapper over the native clickhouse connection
type CH struct {
	conn driver.Conn
}

// Open parses cfg.URL (clickhouse://host:port?username=..&password=..) and connects
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	}
	opts.ClientInfo = BuildClientInfo(cfg.AppName, cfg.Tag)

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows into table using a prepared batch
func (c *CH) Insert(ctx context.Context, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(cols, ", "))
	batch, err := c.conn.PrepareBatch(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ch: prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			return fmt.Errorf("ch: append: %w", err)
		}
	}
	return batch.Send()
}

// Exec runs a statement without a result set, used for DDL
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	return c.conn.Exec(ctx, sql, args...)
}

// Query runs a query and returns Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (*RowsAdapter, error) {
	rs, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &RowsAdapter{r: rs}, nil
}

// Close closes the underlying connection
func (c *CH) Close() error { return c.conn.Close() }

// RowsAdapter exposes driver.Rows through the store seam shape
type RowsAdapter struct{ r driver.Rows }

// Next advances the result set
func (x *RowsAdapter) Next() bool { return x.r.Next() }

// Scan scans the current row
func (x *RowsAdapter) Scan(dest ...any) error { return x.r.Scan(dest...) }

// Err reports a deferred iteration error
func (x *RowsAdapter) Err() error { return x.r.Err() }

// Close releases the result set
func (x *RowsAdapter) Close() { _ = x.r.Close() }

// Columns lists the result columns
func (x *RowsAdapter) Columns() []string { return x.r.Columns() }
