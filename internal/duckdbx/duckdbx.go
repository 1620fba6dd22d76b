// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package duckdbx opens DuckDB databases and loads scanned record batches
// into tables.
package duckdbx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

type option func(*Config)

type Config struct {
	MemoryLimitMB int64
	Threads       int
	TempDirectory string
	MaxTempSize   string
	Metrics       bool
	MetricsPeriod time.Duration
	InstanceName  string

	pollerContext context.Context
}

// WithMemoryLimitMB sets a memory limit for DuckDB in megabytes.
func WithMemoryLimitMB(limit int64) option {
	return func(c *Config) {
		c.MemoryLimitMB = limit
	}
}

// WithThreads caps the DuckDB worker threads of each connection.
func WithThreads(n int) option {
	return func(c *Config) {
		c.Threads = n
	}
}

// WithTempDirectory sets where DuckDB spills data that does not fit in memory.
func WithTempDirectory(dir string) option {
	return func(c *Config) {
		c.TempDirectory = dir
	}
}

// WithMaxTempDirectorySize caps the spilled data, e.g. "10GB".
func WithMaxTempDirectorySize(size string) option {
	return func(c *Config) {
		c.MaxTempSize = size
	}
}

// WithMetrics enables periodic polling of DuckDB memory metrics.
// The context can be set with WithMetricsContext, which is recommended to allow
// for graceful shutdown of the polling goroutine.
func WithMetrics(period time.Duration) option {
	return func(c *Config) {
		c.Metrics = true
		c.MetricsPeriod = period
	}
}

// WithMetricsContext sets the context used for metrics polling.
func WithMetricsContext(ctx context.Context) option {
	return func(c *Config) {
		c.pollerContext = ctx
	}
}

// WithName tags the polled metrics with an instance name.
func WithName(name string) option {
	return func(c *Config) {
		c.InstanceName = name
	}
}

type DB struct {
	db     *sql.DB
	config Config
}

// Open opens a DuckDB database. An empty dataSourceName or ":memory:"
// opens an in-memory database.
func Open(dataSourceName string, opts ...option) (*DB, error) {
	if dataSourceName == ":memory:" {
		dataSourceName = ""
	}
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, err
	}

	config := Config{
		MetricsPeriod: 10 * time.Second,
		pollerContext: context.Background(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	d := &DB{db: db, config: config}
	if config.Metrics {
		go d.pollMemoryMetrics(config.pollerContext)
	}
	return d, nil
}

// Conn returns a new connection with the memory limit and thread count
// already applied.
func (d *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.setupConn(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func (d *DB) setupConn(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "PRAGMA enable_object_cache;"); err != nil {
		return fmt.Errorf("failed to enable object cache: %w", err)
	}

	if d.config.MemoryLimitMB > 0 {
		stmt := fmt.Sprintf("SET memory_limit='%dMB';", d.config.MemoryLimitMB)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set memory limit: %w", err)
		}
	}
	if d.config.TempDirectory != "" {
		stmt := fmt.Sprintf("SET temp_directory='%s';", strings.ReplaceAll(d.config.TempDirectory, "'", "''"))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set temp directory: %w", err)
		}
	}
	if d.config.MaxTempSize != "" {
		stmt := fmt.Sprintf("SET max_temp_directory_size='%s';", strings.ReplaceAll(d.config.MaxTempSize, "'", "''"))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set max temp directory size: %w", err)
		}
	}
	if d.config.Threads > 0 {
		stmt := fmt.Sprintf("SET threads=%d;", d.config.Threads)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// QueryContext runs query on a fresh connection. The caller closes both
// the rows and the connection.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, *sql.Conn, error) {
	conn, err := d.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get duckdb connection: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		closeErr := conn.Close()
		if closeErr != nil {
			return nil, nil, fmt.Errorf("query failed, and closing connection also failed: %v; %v", err, closeErr)
		}
		return nil, nil, fmt.Errorf("query execution failed: %w", err)
	}

	return rows, conn, nil
}
