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
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/dateformat"
	"github.com/cardinalhq/vmfscan/internal/idgen"
	"github.com/cardinalhq/vmfscan/internal/logctx"
	"github.com/cardinalhq/vmfscan/internal/structure"
	"github.com/cardinalhq/vmfscan/internal/transform"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
	"github.com/cardinalhq/vmfscan/vmf"
)

// Binding is the resolved plan of a scan: the files to read, the output
// columns and the conversion policies. Detection may already have read
// and reset the files.
type Binding struct {
	id         string
	opts       Options
	files      []string
	readers    []*vmfreader.BufferedReader
	pool       *vmfreader.BufferPool
	formats    *dateformat.Map
	columns    []coltype.Field
	schema     *arrow.Schema
	recordType vmfreader.RecordType
	// sources handed to BindSources; closed by Close only
	borrowed  []bytesource.Source
	root      *structure.Node
	samples   int64
	transform transform.Options
}

// Bind resolves paths and options into a Binding. Unless columns are given
// or the scan returns whole documents, the files are sampled to detect the
// column types.
func Bind(ctx context.Context, paths []string, opts Options) (*Binding, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	b := &Binding{
		id:         idgen.NextScanID(),
		opts:       opts,
		files:      files,
		pool:       vmfreader.NewBufferPool(opts.bufferCapacity()),
		recordType: opts.RecordType,
	}
	for _, f := range files {
		b.readers = append(b.readers, b.newReader(f, vmfreader.FileOpener(f, bytesource.Options{
			Compression: opts.Compression,
			S3:          opts.S3,
		})))
	}
	if err := b.bind(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// BindSources is Bind over already opened sources, typically standard
// input. Sequential sources must be pipes: they are read once and the
// sampled prefix is replayed from memory for the main pass. The sources
// stay open across passes and are closed by Binding.Close.
func BindSources(ctx context.Context, srcs []bytesource.Source, opts Options) (*Binding, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(srcs) == 0 {
		return nil, errors.New("no sources to scan")
	}
	b := &Binding{
		id:         idgen.NextScanID(),
		opts:       opts,
		pool:       vmfreader.NewBufferPool(opts.bufferCapacity()),
		recordType: opts.RecordType,
	}
	for _, src := range srcs {
		if !src.CanSeek() && !src.IsPipe() {
			return nil, fmt.Errorf("source %q can only be read once; wrap it with bytesource.NewPipe", src.Name())
		}
		b.files = append(b.files, src.Name())
		b.borrowed = append(b.borrowed, src)
		kept := keepOpen{src}
		b.readers = append(b.readers, b.newReader(src.Name(), func(context.Context) (bytesource.Source, error) {
			return kept, nil
		}))
	}
	if err := b.bind(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Binding) newReader(name string, opener vmfreader.Opener) *vmfreader.BufferedReader {
	return vmfreader.NewBufferedReader(name, b.opts.readerOptions(), opener)
}

func (b *Binding) bind(ctx context.Context) error {
	formats, err := formatMap(b.opts)
	if err != nil {
		return err
	}
	b.formats = formats

	switch {
	case b.opts.Kind == KindObjects:
		b.columns = []coltype.Field{{Name: ValuesColumn, Type: coltype.Simple(coltype.VMF)}}
		b.recordType = vmfreader.Values
	case len(b.opts.Columns) > 0:
		b.opts.AutoDetect = false
		b.columns = b.opts.Columns
		if b.recordType == vmfreader.RecordsAuto {
			b.recordType = vmfreader.Records
		}
	default:
		if err := b.detect(ctx); err != nil {
			return err
		}
	}

	cols := b.columns
	if b.opts.FilenameColumn != "" {
		for _, c := range cols {
			if c.Name == b.opts.FilenameColumn {
				return fmt.Errorf("filename column %q collides with a detected column of the same name", c.Name)
			}
		}
		cols = append(cols[:len(cols):len(cols)], coltype.Field{Name: b.opts.FilenameColumn, Type: coltype.Simple(coltype.Varchar)})
	}
	b.schema = coltype.Schema(cols)

	ignore := b.opts.IgnoreErrors
	b.transform = transform.Options{
		StrictCast:          !ignore,
		ErrorOnDuplicateKey: !ignore,
		ErrorOnMissingKey:   false,
		ErrorOnUnknownKey:   b.opts.AutoDetect && !ignore,
		DelayError:          true,
		Formats:             b.formats,
	}

	logctx.FromContext(ctx).Info("Bound VMF scan",
		slog.String("scanID", b.id),
		slog.String("kind", b.opts.Kind.String()),
		slog.Int("files", len(b.files)),
		slog.Int("columns", len(b.columns)),
		slog.String("records", b.recordType.String()),
		slog.Int64("samples", b.samples))
	return nil
}

// expandPaths resolves glob patterns. Object store URLs and "-" pass
// through as is. Each file appears once, in first seen order.
func expandPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to scan")
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	var files []string
	add := func(f string) {
		if seen.Add(f) {
			files = append(files, f)
		}
	}
	for _, p := range paths {
		if p == "-" || strings.HasPrefix(p, "s3://") || !strings.ContainsAny(p, "*?[") {
			add(p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("No files found that match the pattern \"%s\"", p)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

// formatMap holds the forced date and timestamp formats. When detecting,
// the built-in candidates are added for the types without a forced one.
func formatMap(opts Options) (*dateformat.Map, error) {
	m := dateformat.NewMap()
	forced := []struct {
		id   coltype.ID
		spec string
	}{
		{coltype.Date, opts.DateFormat},
		{coltype.Timestamp, opts.TimestampFormat},
	}
	for _, f := range forced {
		if f.spec == "" {
			continue
		}
		if err := m.Add(f.id, f.spec); err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", strings.ToLower(f.id.String()), f.spec, err)
		}
	}
	if !opts.AutoDetect || len(opts.Columns) > 0 {
		return m, nil
	}
	defaults, err := dateformat.DefaultMap("", "")
	if err != nil {
		return nil, err
	}
	for _, f := range forced {
		if m.Has(f.id) {
			continue
		}
		for _, df := range defaults.Formats(f.id) {
			if err := m.Add(f.id, df.Spec); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// detect samples the files one at a time into a single tree and resolves
// it into columns.
func (b *Binding) detect(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "vmfscan.detect")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "detection failed")
		}
		span.End()
	}()

	opts := b.opts
	sampler := structure.NewSampler(structure.SampleOptions{
		MaxDepth:                 opts.MaxDepth,
		ConvertStringsToIntegers: opts.ConvertStringsToIntegers,
		IgnoreErrors:             opts.IgnoreErrors,
	}, b.formats)

	remaining := opts.sampleSize()
	for i := range b.readers {
		if opts.UnionByName {
			remaining = opts.sampleSize()
		}
		if remaining > 0 {
			if remaining, err = b.sampleFile(ctx, i, sampler, remaining); err != nil {
				return err
			}
		}
		if opts.MaximumSampleFiles > 0 && i+1 >= opts.MaximumSampleFiles {
			break
		}
		if !opts.UnionByName && remaining <= 0 {
			break
		}
	}
	b.samples = sampler.Samples()
	b.root = sampler.Root()

	resolver := structure.Resolver{
		MaxDepth:                 opts.MaxDepth,
		FieldAppearanceThreshold: opts.FieldAppearanceThreshold,
		MapInferenceThreshold:    opts.MapInferenceThreshold,
	}
	typ := resolver.Resolve(b.root)
	if b.recordType == vmfreader.RecordsAuto {
		if typ.ID == coltype.Struct {
			b.recordType = vmfreader.Records
		} else {
			b.recordType = vmfreader.Values
		}
	}

	switch b.recordType {
	case vmfreader.Records:
		if typ.ID != coltype.Struct {
			return errors.New("read_vmf expected records, but got non-record VMF instead.\n Try setting records='auto' or records='false'.")
		}
		for _, f := range typ.Fields {
			ft, err := structure.RemoveDuplicateStructKeys(f.Type, opts.IgnoreErrors)
			if err != nil {
				return err
			}
			b.columns = append(b.columns, coltype.Field{Name: f.Name, Type: ft})
		}
	default:
		b.columns = []coltype.Field{{Name: ValuesColumn, Type: typ}}
	}

	span.SetAttributes(
		attribute.Int64("samples", b.samples),
		attribute.Int("columns", len(b.columns)),
		attribute.String("records", b.recordType.String()),
	)
	return nil
}

// sampleFile feeds up to remaining documents of file i to sampler and
// rewinds the file for the main pass.
func (b *Binding) sampleFile(ctx context.Context, i int, sampler *structure.Sampler, remaining int) (int, error) {
	s := newState(b.opts, b.readers[i:i+1], b.pool, true)
	w := newWorker(s, nil)
	defer w.close()

	for remaining > 0 {
		n, err := w.readNext(ctx)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		if err := sampler.Add(w.values[:min(n, remaining)]); err != nil {
			return 0, err
		}
		remaining -= n
	}
	return remaining, nil
}

// ID identifies the scan in logs.
func (b *Binding) ID() string { return b.id }

// Files are the expanded input files.
func (b *Binding) Files() []string { return b.files }

// Columns are the output columns, without the filename column.
func (b *Binding) Columns() []coltype.Field { return b.columns }

// Schema is the Arrow schema of emitted records, including the filename
// column.
func (b *Binding) Schema() *arrow.Schema { return b.schema }

func (b *Binding) RecordType() vmfreader.RecordType { return b.recordType }

// Structure renders the detected shape of the input. It is nil when
// nothing was sampled.
func (b *Binding) Structure() *vmf.Value {
	if b.root == nil {
		return nil
	}
	return structure.DescribeNode(b.root)
}

// Samples is the number of documents sampled.
func (b *Binding) Samples() int64 { return b.samples }

// Formats are the surviving date and timestamp formats.
func (b *Binding) Formats() *dateformat.Map { return b.formats }

// FileFormats is the layout of each file. Files that were not sampled
// report FormatAuto until a scan reaches them.
func (b *Binding) FileFormats() []vmfreader.Format {
	out := make([]vmfreader.Format, len(b.readers))
	for i, r := range b.readers {
		out[i] = r.Format()
	}
	return out
}

func (b *Binding) AutoDetect() bool { return b.opts.AutoDetect }

func (b *Binding) Options() Options { return b.opts }

// Close closes every file.
func (b *Binding) Close() error {
	var errs *multierror.Error
	for _, r := range b.readers {
		if err := r.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, src := range b.borrowed {
		if err := src.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	b.borrowed = nil
	return errs.ErrorOrNil()
}

// keepOpen lets the reader close its handle at the end of a pass while
// the source itself stays usable for the next one.
type keepOpen struct {
	bytesource.Source
}

func (keepOpen) Close() error { return nil }

func (k keepOpen) Duplicate() (bytesource.Source, error) {
	d, ok := k.Source.(bytesource.Duplicator)
	if !ok {
		return nil, fmt.Errorf("source %q cannot be duplicated", k.Name())
	}
	return d.Duplicate()
}
