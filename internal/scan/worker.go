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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/logctx"
	"github.com/cardinalhq/vmfscan/internal/splitter"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
	"github.com/cardinalhq/vmfscan/vmf"
)

// chunk is one message from a worker to the collector. A chunk with done
// set closes its batch; it never carries a record.
type chunk struct {
	batch int64
	rec   arrow.RecordBatch
	done  bool
}

// worker is the state of one scan goroutine: the buffer it is splitting,
// the tail carried over from its previous buffer, and the documents of the
// chunk it is building.
type worker struct {
	s   *state
	out chan<- chunk

	reader   *vmfreader.BufferedReader
	parallel bool
	local    bytesource.Source

	handle        *vmfreader.BufferHandle
	bufIndex      int64
	mem           []byte
	size          int
	offset        int
	pos           int64
	isLast        bool
	terminal      bool
	prevRemainder int
	needSeparator bool
	records       int64
	reconstruct   []byte

	batch    int64
	hasBatch bool

	values []*vmf.Value
	units  []string
}

func newWorker(s *state, out chan<- chunk) *worker {
	return &worker{
		s:      s,
		out:    out,
		values: make([]*vmf.Value, 0, s.opts.VectorSize),
	}
}

// readNext fills values with the next chunk of documents, all from one
// buffer. It returns 0 once every reader is exhausted.
func (w *worker) readNext(ctx context.Context) (int, error) {
	w.values = w.values[:0]
	w.units = w.units[:0]
	for len(w.values) == 0 {
		if w.offset == w.size {
			ok, err := w.readNextBuffer(ctx)
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}
			if w.handle.Index != 0 && w.reader.Format() == vmfreader.FormatNewlineDelimited {
				if err := w.reconstructFirst(ctx); err != nil {
					return 0, err
				}
			}
		}
		if err := w.parseNextChunk(ctx); err != nil {
			return 0, err
		}
	}
	if len(w.values) > 0 {
		recordsParsedCounter.Add(ctx, int64(len(w.values)))
	}
	return len(w.values), nil
}

// readNextBuffer retires the current buffer and reads the next one,
// moving on to the next file when the current one has nothing left.
func (w *worker) readNextBuffer(ctx context.Context) (bool, error) {
	var mem []byte
	if w.handle != nil {
		w.reader.SetBufferLineCount(w.handle, w.records)
		mem = w.release(w.handle)
		w.handle = nil
	}
	if mem == nil {
		mem = w.s.pool.Get()
	}
	if w.prevRemainder > 0 {
		copy(mem, w.reconstruct[:w.prevRemainder])
	}

	for {
		if w.reader == nil {
			claimed, read, err := w.claim(ctx, mem)
			if err != nil {
				w.s.pool.Put(mem)
				return false, err
			}
			if !claimed {
				w.s.pool.Put(mem)
				return false, nil
			}
			if read {
				break
			}
		}
		ok, err := w.readInto(ctx, mem, false)
		if err != nil {
			w.s.pool.Put(mem)
			return false, err
		}
		if ok {
			break
		}
		w.dropReader()
	}

	w.mem = mem
	w.offset = 0
	if w.bufIndex == 0 && w.reader.Format() == vmfreader.FormatArray {
		off, err := splitter.SkipArrayStart(mem[:w.size], 0, w.reader.Name(), w.s.opts.AllowComments)
		if err != nil {
			w.s.pool.Put(mem)
			return false, err
		}
		w.offset = off
	}

	// a newline delimited buffer is also read by its successor, which
	// takes the unfinished last line
	readers := int64(1)
	if w.reader.Format() == vmfreader.FormatNewlineDelimited && !w.isLast {
		readers = 2
	}
	w.handle = vmfreader.NewBufferHandle(w.bufIndex, readers, mem, w.size)
	w.reader.InsertBuffer(w.handle)
	w.prevRemainder = 0
	w.records = 0
	buffersReadCounter.Add(ctx, 1)

	logctx.FromContext(ctx).Debug("Claimed buffer",
		slog.String("file", w.reader.Name()),
		slog.Int64("buffer", w.bufIndex),
		slog.Int64("position", w.pos),
		slog.Int("size", w.size),
		slog.Bool("last", w.isLast))
	return true, nil
}

// claim takes the next reader that still has reads to hand out. A reader
// whose format is unknown has its first buffer read and inspected while
// the state lock is held, so read reports whether mem was filled.
func (w *worker) claim(ctx context.Context, mem []byte) (claimed, read bool, err error) {
	s := w.s
	s.mu.Lock()
	var r *vmfreader.BufferedReader
	for s.fileIndex < len(s.readers) {
		r = s.readers[s.fileIndex]
		if !exhausted(r) {
			break
		}
		s.fileIndex++
		r = nil
	}
	if r == nil {
		s.mu.Unlock()
		return false, false, nil
	}
	if !r.IsOpen() {
		if err := r.Open(ctx); err != nil {
			s.mu.Unlock()
			return false, false, fmt.Errorf("opening %q: %w", r.Name(), err)
		}
	}
	w.reader = r
	w.parallel = false
	batch := s.nextBatch()
	if r.Format() == vmfreader.FormatAuto {
		read, err = w.readAndDetect(ctx, mem)
		if err != nil {
			s.mu.Unlock()
			return false, false, err
		}
	}
	w.parallel = s.parallel && r.Format() == vmfreader.FormatNewlineDelimited
	if !w.parallel {
		s.advancePastLocked(r)
	}
	s.mu.Unlock()

	if err := w.startBatch(ctx, batch); err != nil {
		return false, false, err
	}
	if w.parallel {
		w.duplicateSource()
	}
	return true, read, nil
}

// duplicateSource gives this worker its own handle on remote sources, so
// concurrent positional reads do not share one connection.
func (w *worker) duplicateSource() {
	w.reader.Lock()
	src := w.reader.File().Source()
	w.reader.Unlock()
	d, ok := src.(bytesource.Duplicator)
	if !ok || src.OnDisk() || !src.CanSeek() {
		return
	}
	local, err := d.Duplicate()
	if err != nil {
		return
	}
	w.local = local
}

func (w *worker) readAndDetect(ctx context.Context, mem []byte) (bool, error) {
	ok, err := w.readInto(ctx, mem, true)
	if err != nil || !ok {
		return false, err
	}
	r := w.reader
	if w.size == 0 {
		r.SetFormat(vmfreader.FormatNewlineDelimited)
		return true, nil
	}
	format, recordType := splitter.Detect(mem[:w.size], w.s.opts.AllowComments)
	r.SetFormat(format)
	if r.RecordType() == vmfreader.RecordsAuto {
		r.SetRecordType(recordType)
	}
	if !w.s.opts.IgnoreErrors && w.s.opts.RecordType == vmfreader.Records && recordType != vmfreader.Records {
		return false, fmt.Errorf("Expected file \"%s\" to contain records, detected non-record VMF instead.", r.Name())
	}
	return true, nil
}

// readInto fills mem after the carried prefix with the next slice of the
// current file. ok is false once the file has nothing left to hand out.
// locked tells whether the caller holds the state lock.
func (w *worker) readInto(ctx context.Context, mem []byte, locked bool) (ok bool, err error) {
	r := w.reader
	request := len(mem) - w.prevRemainder
	batch := int64(-1)
	var (
		n        int
		fileDone bool
	)

	r.Lock()
	f := r.File()
	if f.CanSeek() {
		pos, size, got := f.GetPositionAndSize(int64(request))
		if !got {
			r.Unlock()
			w.advance(r, locked)
			return false, nil
		}
		w.bufIndex = r.NextBufferIndex()
		if w.parallel {
			batch = w.s.nextBatch()
		}
		r.Unlock()

		n = int(size)
		w.pos = pos
		if n == 0 {
			w.advance(r, locked)
		}
		fileDone, err = f.ReadAtPosition(mem[w.prevRemainder:w.prevRemainder+n], pos, w.s.sampling, w.local)
		if err != nil {
			return false, err
		}
	} else {
		w.pos = f.Position()
		var got bool
		n, fileDone, got, err = f.Read(mem[w.prevRemainder:], w.s.sampling)
		if err != nil {
			r.Unlock()
			return false, err
		}
		if !got {
			r.Unlock()
			w.advance(r, locked)
			return false, nil
		}
		w.bufIndex = r.NextBufferIndex()
		if w.parallel {
			batch = w.s.nextBatch()
		}
		r.Unlock()
		if n == 0 {
			w.advance(r, locked)
		}
	}

	if fileDone {
		r.Lock()
		err := f.Close()
		r.Unlock()
		if err != nil {
			return false, fmt.Errorf("closing %q: %w", r.Name(), err)
		}
	}

	w.size = w.prevRemainder + n
	w.isLast = n == 0
	w.terminal = n > 0 && n < request
	if batch >= 0 {
		if err := w.startBatch(ctx, batch); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (w *worker) advance(r *vmfreader.BufferedReader, locked bool) {
	if locked {
		w.s.advancePastLocked(r)
	} else {
		w.s.advancePast(r)
	}
}

func (w *worker) dropReader() {
	if w.local != nil {
		_ = w.local.Close()
		w.local = nil
	}
	w.reader = nil
	w.parallel = false
	w.isLast = false
	w.terminal = false
	w.prevRemainder = 0
	w.needSeparator = false
}

// release drops this worker's reference to h and returns its memory when
// that was the last one.
func (w *worker) release(h *vmfreader.BufferHandle) []byte {
	if !h.Release() {
		return nil
	}
	return w.reader.RemoveBuffer(h)
}

func (w *worker) reconstructBuffer() []byte {
	if w.reconstruct == nil {
		w.reconstruct = make([]byte, w.s.opts.MaximumObjectSize)
	}
	return w.reconstruct
}

// reconstructFirst joins the unfinished last line of the previous buffer
// with the start of this one and parses it as the first record of this
// buffer. Surrounding whitespace does not count toward the size limit.
func (w *worker) reconstructFirst(ctx context.Context) error {
	limit := w.s.opts.MaximumObjectSize
	prev, err := w.reader.WaitBuffer(ctx, w.handle.Index-1)
	if err != nil {
		return err
	}
	defer func() {
		if mem := w.release(prev); mem != nil {
			w.s.pool.Put(mem)
		}
	}()
	pb := prev.Bytes()

	// a short buffer was the last with data and finished its own tail
	var tail []byte
	if len(pb) == w.s.capacity {
		nl := splitter.PreviousNewline(pb, len(pb))
		switch {
		case nl >= 0:
			tail = pb[nl+1:]
		case prev.Index == 0:
			tail = pb
		default:
			return w.objectSizeError(ctx, w.pos-int64(len(pb)), int64(len(pb)))
		}
	}
	tail = splitter.TrimLeft(tail)
	if n := len(splitter.TrimRight(tail)); n > limit {
		return w.objectSizeError(ctx, w.pos-int64(len(tail)), int64(n))
	}
	if len(tail) == 0 {
		// blank remainder, parseNextChunk skips the rest of the line
		return nil
	}

	var part []byte
	if w.size > 0 {
		cur := w.mem[:w.size]
		e := splitter.NextNewline(cur)
		switch {
		case e >= 0:
			w.offset = e + 1
		case w.terminal:
			e = len(cur)
			w.offset = e
		default:
			return w.objectSizeError(ctx, w.pos-int64(len(tail)), int64(len(tail)+w.size))
		}
		part = splitter.TrimRight(cur[:e])
	}
	if len(part) == 0 {
		tail = splitter.TrimRight(tail)
	}
	if n := len(tail) + len(part); n > limit {
		return w.objectSizeError(ctx, w.pos-int64(len(tail)), int64(n))
	}
	buf := w.reconstructBuffer()
	line := copy(buf, tail)
	line += copy(buf[line:], part)
	return w.parse(ctx, buf[:line])
}

// parseNextChunk splits documents out of the current buffer until the
// chunk is full or the buffer is used up. An unfinished document at the
// end of the buffer is carried into the next one, except in newline
// delimited files where the next buffer reconstructs it.
func (w *worker) parseNextChunk(ctx context.Context) error {
	opts := w.s.opts
	buf := w.mem[:w.size]
	format := w.reader.Format()
	for len(w.values) < opts.VectorSize {
		w.offset = splitter.SkipWhitespace(buf, w.offset, opts.AllowComments)
		if w.needSeparator {
			if w.offset == w.size {
				if w.isLast {
					return w.separatorError(ctx, "unexpected end of data, expected ',' or ']'")
				}
				break
			}
			c := buf[w.offset]
			if c != ',' && c != ']' {
				return w.separatorError(ctx, "unexpected character")
			}
			w.offset++
			w.needSeparator = false
			if c == ']' {
				w.offset = splitter.SkipWhitespace(buf, w.offset, opts.AllowComments)
				if w.offset != w.size {
					return w.separatorError(ctx, "unexpected content after ']'")
				}
				break
			}
			continue
		}
		remaining := w.size - w.offset
		if remaining == 0 {
			break
		}

		start := w.offset
		var end int
		if format == vmfreader.FormatNewlineDelimited {
			end = splitter.NextNewline(buf[start:])
		} else {
			end = splitter.NextValue(buf[start:], opts.AllowComments)
		}
		if end < 0 {
			complete := w.isLast || (w.terminal && format == vmfreader.FormatNewlineDelimited)
			if !complete {
				if format != vmfreader.FormatNewlineDelimited {
					if remaining > opts.MaximumObjectSize {
						return w.objectSizeError(ctx, w.filePos(start), int64(remaining))
					}
					copy(w.reconstructBuffer(), buf[start:])
					w.prevRemainder = remaining
				}
				w.offset = w.size
				break
			}
			end = remaining
		}

		if n := len(splitter.TrimRight(buf[start : start+end])); n > opts.MaximumObjectSize {
			return w.objectSizeError(ctx, w.filePos(start), int64(n))
		}
		if err := w.parse(ctx, buf[start:start+end]); err != nil {
			return err
		}
		w.offset = start + end
		if format == vmfreader.FormatArray {
			w.needSeparator = true
		}
	}
	return nil
}

// filePos maps an offset in the current buffer to a file position.
func (w *worker) filePos(off int) int64 {
	return w.pos + int64(off-w.prevRemainder)
}

// parse parses one record and appends it to the chunk. With IgnoreErrors
// a malformed record becomes a null row.
func (w *worker) parse(ctx context.Context, unit []byte) error {
	v, err := vmf.ParseWith(unit, vmf.ParseOptions{AllowComments: w.s.opts.AllowComments})
	if err != nil {
		if !w.s.opts.IgnoreErrors {
			var extra string
			var se *vmf.SyntaxError
			if errors.As(err, &se) && se.Truncated() {
				extra = "Try auto-detecting the VMF format"
			}
			return w.reader.ParseError(ctx, w.handle.Index, w.records, err, extra)
		}
		v = nil
	}
	w.records++
	w.values = append(w.values, v)
	if w.s.opts.Kind == KindObjects {
		w.units = append(w.units, string(bytes.TrimSpace(unit)))
	}
	return nil
}

func (w *worker) separatorError(ctx context.Context, msg string) error {
	err := &vmf.SyntaxError{Offset: int64(w.offset), Code: vmf.ErrInvalid, Msg: msg}
	return w.reader.ParseError(ctx, w.handle.Index, max(w.records-1, 0), err, "")
}

func (w *worker) objectSizeError(ctx context.Context, offset, size int64) error {
	return w.reader.ObjectSizeError(ctx, w.handle.Index, w.records, max(offset, 0), int64(w.s.opts.MaximumObjectSize), size)
}

// startBatch closes the batch the worker was filling and opens idx.
func (w *worker) startBatch(ctx context.Context, idx int64) error {
	if err := w.finishBatch(ctx); err != nil {
		return err
	}
	w.batch, w.hasBatch = idx, true
	return nil
}

func (w *worker) finishBatch(ctx context.Context) error {
	if !w.hasBatch {
		return nil
	}
	w.hasBatch = false
	return w.send(ctx, chunk{batch: w.batch, done: true})
}

func (w *worker) send(ctx context.Context, c chunk) error {
	if w.out == nil {
		return nil
	}
	select {
	case w.out <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drops the worker's buffer and reader without posting line counts.
func (w *worker) close() {
	if w.handle != nil {
		if mem := w.release(w.handle); mem != nil {
			w.s.pool.Put(mem)
		}
		w.handle = nil
	}
	if w.reader != nil {
		w.dropReader()
	}
}
