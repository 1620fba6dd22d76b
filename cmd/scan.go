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
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/vmfscan/config"
	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/cbor"
	"github.com/cardinalhq/vmfscan/internal/logctx"
	"github.com/cardinalhq/vmfscan/internal/parquetwriter"
	"github.com/cardinalhq/vmfscan/internal/s3helper"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

var errLimitReached = errors.New("row limit reached")

func init() {
	cmd := &cobra.Command{
		Use:   "scan FILE...",
		Short: "Convert documents into rows",
		Long: `Scan files and print one JSON or CBOR object per row, or write Parquet files.
Use "-" to read standard input and s3://bucket/key for S3 objects.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWithTelemetry("scan", runScan),
	}
	addScanFlags(cmd)
	cmd.Flags().String("output", "json", "Output format: json, cbor or parquet")
	cmd.Flags().String("out-dir", ".", "Directory or s3://bucket/prefix for Parquet output")
	cmd.Flags().String("prefix", parquetwriter.DefaultPrefix, "File name prefix for Parquet output")
	cmd.Flags().Int64("limit", 0, "Stop after this many rows, 0 for all")
	cmd.Flags().Bool("objects", false, "Emit each document whole instead of typed columns")

	rootCmd.AddCommand(cmd)
}

// rowSink receives scanned batches in input order.
type rowSink interface {
	Write(ctx context.Context, rec arrow.RecordBatch) error
	Close(ctx context.Context) error
	Abort()
}

type jsonSink struct {
	w *bufio.Writer
}

func (s *jsonSink) Write(_ context.Context, rec arrow.RecordBatch) error {
	return array.RecordToJSON(rec, s.w)
}

func (s *jsonSink) Close(context.Context) error { return s.w.Flush() }
func (s *jsonSink) Abort()                      { _ = s.w.Flush() }

type cborSink struct {
	w  *bufio.Writer
	rw *cbor.RowWriter
}

func (s *cborSink) Write(_ context.Context, rec arrow.RecordBatch) error {
	return s.rw.WriteRecord(rec)
}

func (s *cborSink) Close(context.Context) error { return s.w.Flush() }
func (s *cborSink) Abort()                      { _ = s.w.Flush() }

// parquetSink writes Parquet files to a local directory. When uploader is
// set the directory is temporary and every finished file is moved to S3.
type parquetSink struct {
	w        *parquetwriter.Writer
	uploader *s3helper.Uploader
	bucket   string
	prefix   string
	tmpDir   string
	stderr   io.Writer
}

func (s *parquetSink) Write(ctx context.Context, rec arrow.RecordBatch) error {
	return s.w.Write(ctx, rec)
}

func (s *parquetSink) Close(ctx context.Context) error {
	results, err := s.w.Close(ctx)
	if s.uploader != nil {
		defer func() { _ = os.RemoveAll(s.tmpDir) }()
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		name := r.FileName
		if s.uploader != nil {
			key, err := s.uploader.UploadFile(ctx, s.bucket, s.prefix, r.FileName)
			if err != nil {
				return err
			}
			name = "s3://" + s.bucket + "/" + key
		}
		fmt.Fprintf(s.stderr, "%s\t%d rows\t%d bytes\n", name, r.RecordCount, r.FileSize)
	}
	return nil
}

func (s *parquetSink) Abort() {
	_ = s.w.Abort()
	if s.uploader != nil {
		_ = os.RemoveAll(s.tmpDir)
	}
}

func newParquetSink(ctx context.Context, c *cobra.Command, cfg *config.Config, schema *arrow.Schema) (*parquetSink, error) {
	dir, _ := c.Flags().GetString("out-dir")
	prefix, _ := c.Flags().GetString("prefix")
	sink := &parquetSink{stderr: c.ErrOrStderr()}
	if s3helper.IsURL(dir) {
		bucket, keyPrefix, err := s3helper.SplitURL(dir)
		if err != nil {
			return nil, err
		}
		client, err := bytesource.NewS3Client(ctx, cfg.S3.ClientOptions())
		if err != nil {
			return nil, err
		}
		if dir, err = os.MkdirTemp("", "vmfscan-upload-"); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
		sink.uploader = s3helper.NewUploader(client)
		sink.bucket, sink.prefix, sink.tmpDir = bucket, keyPrefix, dir
	}
	w, err := parquetwriter.New(parquetwriter.WriterConfig{
		Dir:            dir,
		Prefix:         prefix,
		RecordsPerFile: cfg.Parquet.RecordsPerFile,
		RowGroupLength: cfg.Parquet.RowGroupLength,
		Compression:    cfg.Parquet.Compression,
		CreatedBy:      "vmfscan",
	}, schema)
	if err != nil {
		if sink.tmpDir != "" {
			_ = os.RemoveAll(sink.tmpDir)
		}
		return nil, err
	}
	sink.w = w
	return sink, nil
}

func newRowSink(ctx context.Context, c *cobra.Command, cfg *config.Config, schema *arrow.Schema, stdout io.Writer) (rowSink, error) {
	output, _ := c.Flags().GetString("output")
	switch output {
	case "json":
		return &jsonSink{w: bufio.NewWriter(stdout)}, nil
	case "cbor":
		codec, err := cbor.NewConfig()
		if err != nil {
			return nil, err
		}
		w := bufio.NewWriter(stdout)
		return &cborSink{w: w, rw: codec.NewRowWriter(w)}, nil
	case "parquet":
		return newParquetSink(ctx, c, cfg, schema)
	}
	return nil, fmt.Errorf("unknown output %q", output)
}

func runScan(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kind := scan.KindRead
	if objects, _ := c.Flags().GetBool("objects"); objects {
		kind = scan.KindObjects
	}
	limit, _ := c.Flags().GetInt64("limit")

	b, err := bind(ctx, cfg, args, kind)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	sink, err := newRowSink(ctx, c, cfg, b.Schema(), c.OutOrStdout())
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(b)
	rows, err := scanInto(ctx, scanner, sink, limit)
	recordRowsWritten(ctx, "scan", rows)
	if err != nil {
		sink.Abort()
		return err
	}
	logctx.FromContext(ctx).Debug("Scan complete",
		slog.String("scanID", b.ID()),
		slog.Int64("rows", rows),
		slog.Float64("progress", scanner.Progress()))
	return sink.Close(ctx)
}

// scanInto writes every batch to sink, stopping after limit rows when
// limit is positive.
func scanInto(ctx context.Context, scanner *scan.Scanner, sink rowSink, limit int64) (int64, error) {
	var rows int64
	err := scanner.Scan(ctx, func(rec arrow.RecordBatch) error {
		if limit > 0 && rows+rec.NumRows() >= limit {
			part := rec.NewSlice(0, limit-rows)
			defer part.Release()
			if err := sink.Write(ctx, part); err != nil {
				return err
			}
			rows = limit
			return errLimitReached
		}
		if err := sink.Write(ctx, rec); err != nil {
			return err
		}
		rows += rec.NumRows()
		return nil
	})
	if errors.Is(err, errLimitReached) {
		err = nil
	}
	return rows, err
}
