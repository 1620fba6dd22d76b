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
package duckdbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/vmfscan/internal/logctx"
)

var meter = otel.Meter("github.com/cardinalhq/vmfscan/internal/duckdbx")

type memoryGauge struct {
	gauge metric.Int64Gauge
	value func(MemoryStats) int64
}

var memoryGauges []memoryGauge

func init() {
	specs := []struct {
		name, desc, unit string
		value            func(MemoryStats) int64
	}{
		{"database_size", "DuckDB database size", "By", func(s MemoryStats) int64 { return s.DatabaseSize }},
		{"block_size", "DuckDB block size", "By", func(s MemoryStats) int64 { return s.BlockSize }},
		{"total_blocks", "DuckDB total blocks", "1", func(s MemoryStats) int64 { return s.TotalBlocks }},
		{"used_blocks", "DuckDB used blocks", "1", func(s MemoryStats) int64 { return s.UsedBlocks }},
		{"free_blocks", "DuckDB free blocks", "1", func(s MemoryStats) int64 { return s.FreeBlocks }},
		{"wal_size", "DuckDB WAL size", "By", func(s MemoryStats) int64 { return s.WALSize }},
		{"memory_usage", "DuckDB memory usage", "By", func(s MemoryStats) int64 { return s.MemoryUsage }},
		{"memory_limit", "DuckDB memory limit", "By", func(s MemoryStats) int64 { return s.MemoryLimit }},
	}
	for _, sp := range specs {
		g, err := meter.Int64Gauge("vmfscan.duckdb.memory."+sp.name,
			metric.WithDescription(sp.desc),
			metric.WithUnit(sp.unit),
		)
		if err != nil {
			panic(fmt.Errorf("failed to create %s gauge: %w", sp.name, err))
		}
		memoryGauges = append(memoryGauges, memoryGauge{gauge: g, value: sp.value})
	}
}

// RecordMemoryStats reads PRAGMA database_size once, records it on the
// memory gauges and returns it.
func (d *DB) RecordMemoryStats(ctx context.Context) ([]MemoryStats, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := memoryStats(ctx, conn)
	_ = conn.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory stats: %w", err)
	}

	for _, st := range stats {
		attrs := []attribute.KeyValue{
			attribute.String("database_name", st.DatabaseName),
			attribute.String("database_type", "duckdb"),
		}
		if d.config.InstanceName != "" {
			attrs = append(attrs, attribute.String("instance_name", d.config.InstanceName))
		}
		set := metric.WithAttributeSet(attribute.NewSet(attrs...))
		for _, g := range memoryGauges {
			g.gauge.Record(ctx, g.value(st), set)
		}
	}
	return stats, nil
}

// pollMemoryMetrics calls RecordMemoryStats every MetricsPeriod until ctx
// is done or the database is closed.
func (d *DB) pollMemoryMetrics(ctx context.Context) {
	ll := logctx.FromContext(ctx)
	for {
		if _, err := d.RecordMemoryStats(ctx); err != nil {
			if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" || ctx.Err() != nil {
				ll.Debug("Database closed, stopping memory metrics polling")
				return
			}
			ll.Error("Failed to poll DuckDB memory metrics", slog.Any("error", err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.config.MetricsPeriod):
		}
	}
}
