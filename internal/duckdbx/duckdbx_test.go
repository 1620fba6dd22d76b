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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestWithNameOption(t *testing.T) {
	var cfg Config
	WithName("foo")(&cfg)
	require.Equal(t, "foo", cfg.InstanceName)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0 bytes", 0},
		{"512 bytes", 512},
		{"1.5 KiB", 1536},
		{"2 MiB", 2 << 20},
		{"1 GiB", 1 << 30},
		{"3 MB", 3_000_000},
		{"42", 42},
		{"", 0},
		{"n/a", 0},
		{"1 parsecs", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSize(tt.in))
		})
	}
}

func TestPollMemoryMetricsRecordsInstanceName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	orig := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(orig) })

	db, err := Open(":memory:",
		WithMetrics(10*time.Millisecond),
		WithMetricsContext(ctx),
		WithName("test-instance"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	found := func() bool {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				g, ok := m.Data.(metricdata.Gauge[int64])
				if !ok {
					continue
				}
				for _, dp := range g.DataPoints {
					if v, ok := dp.Attributes.Value("instance_name"); ok && v.AsString() == "test-instance" {
						return true
					}
				}
			}
		}
		return false
	}
	assert.Eventually(t, found, 2*time.Second, 20*time.Millisecond, "expected metric with instance_name attribute")
}

func TestRecordMemoryStats(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	stats, err := db.RecordMemoryStats(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Equal(t, "memory", stats[0].DatabaseName)
	assert.Positive(t, stats[0].BlockSize)
}

func TestConnAppliesSettings(t *testing.T) {
	ctx := context.Background()
	db, err := Open("", WithMemoryLimitMB(256), WithThreads(2))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, conn, err := db.QueryContext(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var threads int64
	require.NoError(t, rows.Scan(&threads))
	assert.Equal(t, int64(2), threads)
}

func TestConnAppliesTempDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := Open("", WithTempDirectory(dir))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, conn, err := db.QueryContext(ctx, "SELECT current_setting('temp_directory')")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var got string
	require.NoError(t, rows.Scan(&got))
	assert.Equal(t, dir, got)
}
