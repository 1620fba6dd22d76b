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
// Package parquetwriter writes scanned record batches to Parquet files,
// rolling over to a new file every RecordsPerFile rows.
package parquetwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/vmfscan/internal/logctx"
)

// Result contains metadata about a single output Parquet file.
type Result struct {
	// FileName is the path of the created Parquet file
	FileName string

	// RecordCount is the number of rows written to this file
	RecordCount int64

	// FileSize is the size of the Parquet file in bytes
	FileSize int64
}

var (
	ErrWriterClosed   = errors.New("parquetwriter: writer is already closed")
	ErrSchemaMismatch = errors.New("parquetwriter: record does not match writer schema")
)

// Writer streams record batches of one schema into Parquet files.
// It is not safe for concurrent use.
type Writer struct {
	cfg        WriterConfig
	schema     *arrow.Schema
	props      *parquet.WriterProperties
	arrowProps pqarrow.ArrowWriterProperties

	fw      *pqarrow.FileWriter
	tmpPath string
	rows    int64

	results []Result
	closed  bool
}

// New creates a Writer for records of schema. No file is created until
// the first non-empty record is written.
func New(cfg WriterConfig, schema *arrow.Schema) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, _ := cfg.codec()
	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithMaxRowGroupLength(cfg.GetRowGroupLength()),
	}
	if cfg.CreatedBy != "" {
		opts = append(opts, parquet.WithCreatedBy(cfg.CreatedBy))
	}
	return &Writer{
		cfg:        cfg,
		schema:     schema,
		props:      parquet.NewWriterProperties(opts...),
		arrowProps: pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	}, nil
}

// Write appends rec, splitting it across files when it crosses the
// RecordsPerFile boundary.
func (w *Writer) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if w.closed {
		return ErrWriterClosed
	}
	if !rec.Schema().Equal(w.schema) {
		return fmt.Errorf("%w: got %s", ErrSchemaMismatch, rec.Schema())
	}
	var off int64
	n := rec.NumRows()
	for off < n {
		if w.fw == nil {
			if err := w.open(); err != nil {
				return err
			}
		}
		take := n - off
		if w.cfg.splits() && take > w.cfg.RecordsPerFile-w.rows {
			take = w.cfg.RecordsPerFile - w.rows
		}
		part := rec
		if off != 0 || take != n {
			part = rec.NewSlice(off, off+take)
		}
		err := w.fw.WriteBuffered(part)
		if part != rec {
			part.Release()
		}
		if err != nil {
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		w.rows += take
		off += take
		if w.cfg.splits() && w.rows >= w.cfg.RecordsPerFile {
			if err := w.finish(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) open() error {
	f, err := os.CreateTemp(w.cfg.Dir, w.cfg.prefix()+"-*.parquet.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	fw, err := pqarrow.NewFileWriter(w.schema, f, w.props, w.arrowProps)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	w.fw = fw
	w.tmpPath = f.Name()
	w.rows = 0
	return nil
}

// finish closes the current file and moves it to its final name.
func (w *Writer) finish(ctx context.Context) error {
	fw, tmp, rows := w.fw, w.tmpPath, w.rows
	w.fw, w.tmpPath, w.rows = nil, "", 0

	// Closing the parquet writer closes the temp file as well.
	if err := fw.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	name := filepath.Join(w.cfg.Dir, fmt.Sprintf("%s-%04d.parquet", w.cfg.prefix(), len(w.results)))
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename parquet file: %w", err)
	}
	st, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("failed to stat parquet file: %w", err)
	}
	w.results = append(w.results, Result{FileName: name, RecordCount: rows, FileSize: st.Size()})
	logctx.FromContext(ctx).Debug("Wrote parquet file",
		slog.String("file", name),
		slog.Int64("records", rows),
		slog.Int64("bytes", st.Size()))
	return nil
}

// Close finalizes the open file, if any, and returns every file written.
// A writer that never received a row produces no files.
func (w *Writer) Close(ctx context.Context) ([]Result, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true
	if w.fw != nil {
		if err := w.finish(ctx); err != nil {
			return w.results, err
		}
	}
	return w.results, nil
}

// Abort stops writing and removes every file created so far.
// Can be called multiple times safely.
func (w *Writer) Abort() error {
	w.closed = true
	var errs *multierror.Error
	if w.fw != nil {
		_ = w.fw.Close()
		if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, err)
		}
		w.fw, w.tmpPath = nil, ""
	}
	for _, r := range w.results {
		if err := os.Remove(r.FileName); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, err)
		}
	}
	w.results = nil
	return errs.ErrorOrNil()
}
