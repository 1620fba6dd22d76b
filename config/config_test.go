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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/scan"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DuckDB.Path)
	assert.Equal(t, "zstd", cfg.Parquet.Compression)
	assert.Equal(t, scan.DefaultSampleSize, cfg.Scan.SampleSize)
	assert.True(t, cfg.Scan.AutoDetect)

	opts, err := cfg.Scan.Options()
	require.NoError(t, err)
	assert.Equal(t, vmfreader.FormatAuto, opts.Format)
	assert.Equal(t, scan.DefaultMaximumObjectSize, opts.MaximumObjectSize)
	assert.Positive(t, opts.Threads)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VMFSCAN_SCAN_FORMAT", "newline_delimited")
	t.Setenv("VMFSCAN_SCAN_SAMPLE_SIZE", "100")
	t.Setenv("VMFSCAN_SCAN_IGNORE_ERRORS", "true")
	t.Setenv("VMFSCAN_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("VMFSCAN_S3_USE_PATH_STYLE", "true")
	t.Setenv("VMFSCAN_S3_ROLE_ARN", "arn:aws:iam::123456789012:role/reader")
	t.Setenv("VMFSCAN_DUCKDB_MEMORY_LIMIT", "512")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "newline_delimited", cfg.Scan.Format)
	require.Equal(t, 100, cfg.Scan.SampleSize)
	require.True(t, cfg.Scan.IgnoreErrors)
	require.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	require.True(t, cfg.S3.UsePathStyle)
	require.Equal(t, int64(512), cfg.DuckDB.MemoryLimit)

	s3opts := cfg.S3.ClientOptions()
	assert.Equal(t, "arn:aws:iam::123456789012:role/reader", s3opts.RoleARN)
	assert.Equal(t, "http://localhost:9000", s3opts.Endpoint)
	assert.Empty(t, s3opts.AccessKeyID)

	opts, err := cfg.Scan.Options()
	require.NoError(t, err)
	assert.Equal(t, vmfreader.FormatNewlineDelimited, opts.Format)
	assert.True(t, opts.IgnoreErrors)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmfscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  records: values
  compression: gzip
  columns: "a BIGINT, b VARCHAR[]"
parquet:
  records_per_file: 1000
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Parquet.RecordsPerFile)

	opts, err := cfg.Scan.Options()
	require.NoError(t, err)
	assert.Equal(t, vmfreader.Values, opts.RecordType)
	assert.Equal(t, bytesource.CompressionGzip, opts.Compression)
	require.Len(t, opts.Columns, 2)
	assert.Equal(t, "b", opts.Columns[1].Name)
	assert.Equal(t, coltype.List, opts.Columns[1].Type.ID)
	assert.False(t, opts.AutoDetect, "explicit columns turn detection off")
}

func TestScanOptionsErrors(t *testing.T) {
	for name, mutate := range map[string]func(*ScanConfig){
		"format":      func(c *ScanConfig) { c.Format = "csv" },
		"records":     func(c *ScanConfig) { c.Records = "maybe" },
		"compression": func(c *ScanConfig) { c.Compression = "lzma" },
		"columns":     func(c *ScanConfig) { c.Columns = "a NOT_A_TYPE" },
	} {
		t.Run(name, func(t *testing.T) {
			c := DefaultScanConfig()
			mutate(&c)
			_, err := c.Options()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "scan."+name)
		})
	}
}
