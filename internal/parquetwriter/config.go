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
package parquetwriter

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"
)

const (
	// NoRecordLimitPerFile can be used as RecordsPerFile value to disable file splitting.
	NoRecordLimitPerFile = -1

	// DefaultRowGroupLength is the number of rows buffered before a row group is flushed.
	DefaultRowGroupLength = 64 * 1024

	DefaultPrefix = "scan"
)

// WriterConfig contains all configuration options for creating a Writer.
type WriterConfig struct {
	// Dir is where output files are created. Temporary files live next to
	// them until they are complete.
	Dir string

	// Prefix names the output files: <Prefix>-<n>.parquet.
	Prefix string

	// RecordsPerFile is the number of rows written before rolling over to a
	// new file. NoRecordLimitPerFile or 0 writes everything to one file.
	RecordsPerFile int64

	// RowGroupLength caps the rows per row group. If 0, DefaultRowGroupLength.
	RowGroupLength int64

	// Compression is one of zstd, snappy, gzip, brotli, lz4 or none.
	// Empty means zstd.
	Compression string

	// CreatedBy is stored in the file footer.
	CreatedBy string
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *WriterConfig) Validate() error {
	if c.Dir == "" {
		return &ConfigError{Field: "Dir", Message: "cannot be empty"}
	}
	if c.RecordsPerFile < NoRecordLimitPerFile {
		return &ConfigError{Field: "RecordsPerFile", Message: "must be positive, 0 or NoRecordLimitPerFile"}
	}
	if c.RowGroupLength < 0 {
		return &ConfigError{Field: "RowGroupLength", Message: "cannot be negative"}
	}
	if _, err := c.codec(); err != nil {
		return err
	}
	return nil
}

func (c *WriterConfig) codec() (compress.Compression, error) {
	switch strings.ToLower(c.Compression) {
	case "", "zstd":
		return compress.Codecs.Zstd, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, &ConfigError{Field: "Compression", Message: "unknown codec " + c.Compression}
}

// GetRowGroupLength returns the effective row group length.
func (c *WriterConfig) GetRowGroupLength() int64 {
	if c.RowGroupLength > 0 {
		return c.RowGroupLength
	}
	return DefaultRowGroupLength
}

func (c *WriterConfig) prefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	return DefaultPrefix
}

func (c *WriterConfig) splits() bool {
	return c.RecordsPerFile > 0
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "parquetwriter config: " + e.Field + " " + e.Message
}
