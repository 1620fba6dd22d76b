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

package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/logctx"
	"github.com/cardinalhq/vmfscan/internal/transform"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
)

const (
	detectedHint = "\nTry increasing 'sample_size', reducing 'depth', specifying 'columns', 'format' or 'records' manually, " +
		"setting 'ignore_errors' to true, or setting 'union_by_name' to true when reading multiple files with a different structure."
	fixedHint = "\nTry setting 'auto_detect' to true, specifying 'format' or 'records' manually, or setting 'ignore_errors' to true."
)

// Scanner runs passes over a Binding. A Scanner may be reused, but not
// concurrently.
type Scanner struct {
	b *Binding
}

func NewScanner(b *Binding) *Scanner {
	return &Scanner{b: b}
}

// Scan reads every file and calls fn with each record batch, in file
// order and, within a file, in document order. fn runs on the calling
// goroutine. The batch is released after fn returns, so fn must Retain
// it to keep it. An error from fn stops the scan and is returned.
func (s *Scanner) Scan(ctx context.Context, fn func(arrow.RecordBatch) error) (err error) {
	b := s.b
	ctx = logctx.WithAttrs(ctx, slog.String("scanID", b.id))
	ctx, span := tracer.Start(ctx, "vmfscan.scan")
	span.SetAttributes(
		attribute.String("scanID", b.id),
		attribute.Int("files", len(b.files)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
		}
		span.End()
	}()

	if b.opts.Kind == KindSample {
		return nil
	}
	for _, r := range b.readers {
		if !r.HasFileHandle() {
			continue
		}
		if err := r.Reset(); err != nil {
			return fmt.Errorf("rewinding %q: %w", r.Name(), err)
		}
	}

	st := newState(b.opts, b.readers, b.pool, false)
	conv := newConverter(b)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan chunk, b.opts.threads())
	g, gCtx := errgroup.WithContext(ctx)
	for range b.opts.threads() {
		w := newWorker(st, out)
		g.Go(func() error {
			return w.run(gCtx, conv)
		})
	}
	var workErr error
	go func() {
		workErr = g.Wait()
		close(out)
	}()

	leftover, fnErr := collect(ctx, out, fn, cancel)
	if fnErr != nil {
		return fnErr
	}
	if workErr != nil {
		for _, r := range b.readers {
			r.Abort()
		}
		return workErr
	}
	if leftover > 0 {
		panic(fmt.Sprintf("INTERNAL Error: %d batches were never completed", leftover))
	}
	return nil
}

// Progress is the average percentage of each file handed out to workers.
func (s *Scanner) Progress() float64 {
	if len(s.b.readers) == 0 {
		return 100
	}
	var total float64
	for _, r := range s.b.readers {
		total += r.Progress()
	}
	return total / float64(len(s.b.readers))
}

type pendingBatch struct {
	recs []arrow.RecordBatch
	done bool
}

// collect hands records to fn in batch order. Records of the batch at the
// head go out as they arrive; later batches wait until every earlier
// batch is done. It drains out until the workers close it and reports how
// many batches were left incomplete.
func collect(ctx context.Context, out <-chan chunk, fn func(arrow.RecordBatch) error, cancel context.CancelFunc) (int, error) {
	pending := map[int64]*pendingBatch{}
	var (
		head  int64
		fnErr error
	)
	emit := func(rec arrow.RecordBatch) {
		defer rec.Release()
		if fnErr != nil {
			return
		}
		if err := fn(rec); err != nil {
			fnErr = err
			cancel()
			return
		}
		batchesEmittedCounter.Add(ctx, 1)
	}

	for c := range out {
		if c.batch == head && !c.done {
			emit(c.rec)
			continue
		}
		p := pending[c.batch]
		if p == nil {
			p = &pendingBatch{}
			pending[c.batch] = p
		}
		if c.done {
			p.done = true
		} else {
			p.recs = append(p.recs, c.rec)
		}
		for {
			p, ok := pending[head]
			if !ok {
				break
			}
			for _, rec := range p.recs {
				emit(rec)
			}
			p.recs = nil
			if !p.done {
				break
			}
			delete(pending, head)
			head++
		}
	}

	for _, p := range pending {
		for _, rec := range p.recs {
			rec.Release()
		}
	}
	return len(pending), fnErr
}

// run is the main loop of one scan goroutine.
func (w *worker) run(ctx context.Context, conv *converter) error {
	defer w.close()
	for {
		n, err := w.readNext(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return w.finishBatch(ctx)
		}
		rec, err := conv.batch(ctx, w)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		if err := w.send(ctx, chunk{batch: w.batch, rec: rec}); err != nil {
			rec.Release()
			return err
		}
	}
}

// converter turns a worker's documents into record batches. It holds no
// per-chunk state and is shared by the workers of a scan.
type converter struct {
	kind        Kind
	mem         memory.Allocator
	schema      *arrow.Schema
	columns     []coltype.Field
	recordType  vmfreader.RecordType
	opts        transform.Options
	filename    bool
	skipInvalid bool
	hint        string
}

func newConverter(b *Binding) *converter {
	hint := fixedHint
	if b.opts.AutoDetect {
		hint = detectedHint
	}
	return &converter{
		kind:        b.opts.Kind,
		mem:         b.opts.allocator(),
		schema:      b.schema,
		columns:     b.columns,
		recordType:  b.recordType,
		opts:        b.transform,
		filename:    b.opts.FilenameColumn != "",
		skipInvalid: b.opts.SkipInvalidRows,
		hint:        hint,
	}
}

// batch converts the worker's current chunk. Rows that fail conversion
// either fail the scan with their location or, when skipping invalid
// rows, are dropped one at a time until the rest converts. A nil record
// means every row was dropped.
func (c *converter) batch(ctx context.Context, w *worker) (arrow.RecordBatch, error) {
	values, units := w.values, w.units
	base := w.records - int64(len(values))
	var rows []int
	for {
		if len(values) == 0 {
			return nil, nil
		}
		rb := array.NewRecordBuilder(c.mem, c.schema)
		err := c.fill(rb, w)
		if err == nil {
			rec := rb.NewRecordBatch()
			rb.Release()
			return rec, nil
		}
		rb.Release()

		var te *transform.Error
		if !errors.As(err, &te) {
			return nil, err
		}
		transformErrorsCounter.Add(ctx, 1)
		if rows == nil {
			rows = make([]int, len(values))
			for i := range rows {
				rows[i] = i
			}
		}
		row := base + int64(rows[te.Index])
		if !c.skipInvalid {
			return nil, w.reader.TransformError(ctx, w.handle.Index, row, te.Message+c.hint)
		}

		values = slices.Delete(values, te.Index, te.Index+1)
		if len(units) > te.Index {
			units = slices.Delete(units, te.Index, te.Index+1)
		}
		rows = slices.Delete(rows, te.Index, te.Index+1)
		w.values, w.units = values, units
		recordsSkippedCounter.Add(ctx, 1)
		logctx.FromContext(ctx).Warn("Skipping row that failed conversion",
			slog.String("file", w.reader.Name()),
			slog.Int64("buffer", w.handle.Index),
			slog.Int64("row", row),
			slog.String("error", te.Message))
	}
}

func (c *converter) fill(rb *array.RecordBuilder, w *worker) error {
	var err error
	switch {
	case c.kind == KindObjects:
		sb := rb.Field(0).(*array.StringBuilder)
		for i, u := range w.units {
			if w.values[i] == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(u)
		}
	case c.recordType == vmfreader.Records:
		builders := rb.Fields()[:len(c.columns)]
		err = transform.TransformObject(w.values, c.columns, builders, c.opts)
	default:
		err = transform.Transform(w.values, rb.Field(0), c.columns[0].Type, c.opts)
	}
	if err != nil {
		return err
	}
	if c.filename {
		fb := rb.Field(len(c.columns)).(*array.StringBuilder)
		name := w.reader.Name()
		for range w.values {
			fb.Append(name)
		}
	}
	return nil
}
