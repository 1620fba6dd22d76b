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

package vmfreader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
)

// DefaultLineWait bounds how long error reporting waits for earlier
// buffers to post their line counts.
const DefaultLineWait = 30 * time.Second

// Opener opens the source behind a reader.
type Opener func(ctx context.Context) (bytesource.Source, error)

// BufferedReader is the shared state of one input file during a scan.
// Callers that claim reads take the lock with Lock/Unlock; the other
// methods lock internally unless documented otherwise.
type BufferedReader struct {
	mu sync.Mutex

	opts   Options
	name   string
	opener Opener
	file   *FileHandle

	bufferIndex int64
	buffers     map[int64]*BufferHandle
	counts      []int64
	thrown      bool
	changed     chan struct{}

	// LineWait bounds LineNumber. Zero means DefaultLineWait.
	LineWait time.Duration
}

// NewBufferedReader creates an unopened reader.
func NewBufferedReader(name string, opts Options, opener Opener) *BufferedReader {
	return &BufferedReader{
		opts:    opts,
		name:    name,
		opener:  opener,
		buffers: map[int64]*BufferHandle{},
		changed: make(chan struct{}),
	}
}

// FileOpener returns an Opener for a path understood by bytesource.Open.
func FileOpener(path string, opts bytesource.Options) Opener {
	return func(ctx context.Context) (bytesource.Source, error) {
		return bytesource.Open(ctx, path, opts)
	}
}

func (r *BufferedReader) Lock()   { r.mu.Lock() }
func (r *BufferedReader) Unlock() { r.mu.Unlock() }

// Open opens the source if needed and rewinds the reader.
func (r *BufferedReader) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isOpen() {
		src, err := r.opener(ctx)
		if err != nil {
			return err
		}
		r.file = NewFileHandle(src)
	}
	return r.resetLocked()
}

// Reset drops all buffers and rewinds the file for another pass.
func (r *BufferedReader) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked()
}

func (r *BufferedReader) resetLocked() error {
	r.bufferIndex = 0
	r.thrown = false
	clear(r.buffers)
	r.counts = r.counts[:0]
	if r.file != nil {
		return r.file.Reset()
	}
	return nil
}

func (r *BufferedReader) HasFileHandle() bool { return r.file != nil }

func (r *BufferedReader) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isOpen()
}

func (r *BufferedReader) isOpen() bool {
	return r.file != nil && r.file.IsOpen()
}

func (r *BufferedReader) Options() Options { return r.opts }

func (r *BufferedReader) Format() Format { return r.opts.Format }

// SetFormat fixes a detected format. The format must still be auto.
func (r *BufferedReader) SetFormat(f Format) {
	if r.opts.Format != FormatAuto {
		panic(fmt.Sprintf("INTERNAL Error: format of %q already set to %s", r.name, r.opts.Format))
	}
	r.opts.Format = f
}

func (r *BufferedReader) RecordType() RecordType { return r.opts.RecordType }

// SetRecordType fixes a detected record type. It must still be auto.
func (r *BufferedReader) SetRecordType(t RecordType) {
	if r.opts.RecordType != RecordsAuto {
		panic(fmt.Sprintf("INTERNAL Error: record type of %q already set to %s", r.name, r.opts.RecordType))
	}
	r.opts.RecordType = t
}

func (r *BufferedReader) Name() string { return r.name }

// File returns the file handle. Callers hold the lock while claiming reads.
func (r *BufferedReader) File() *FileHandle {
	if r.file == nil {
		panic(fmt.Sprintf("INTERNAL Error: %q has no file handle", r.name))
	}
	return r.file
}

// InsertBuffer registers a freshly read buffer.
func (r *BufferedReader) InsertBuffer(h *BufferHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers[h.Index] = h
	r.broadcast()
}

// WaitBuffer returns the buffer with the given index, waiting for it to be
// inserted. A slow read of the predecessor is not an error: it waits until
// ctx is done.
func (r *BufferedReader) WaitBuffer(ctx context.Context, index int64) (*BufferHandle, error) {
	for {
		r.mu.Lock()
		h := r.buffers[index]
		changed := r.changed
		r.mu.Unlock()
		if h != nil {
			return h, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *BufferedReader) lineWait() time.Duration {
	if r.LineWait <= 0 {
		return DefaultLineWait
	}
	return r.LineWait
}

// GetBuffer returns the buffer with the given index, if still registered.
func (r *BufferedReader) GetBuffer(index int64) *BufferHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[index]
}

// RemoveBuffer unregisters h and hands back its memory.
func (r *BufferedReader) RemoveBuffer(h *BufferHandle) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.buffers[h.Index]
	if !ok || cur != h {
		panic(fmt.Sprintf("INTERNAL Error: removing unknown buffer %d from %q", h.Index, r.name))
	}
	delete(r.buffers, h.Index)
	return h.data
}

// NextBufferIndex reserves the next buffer index and its line count slot.
// The caller holds the lock.
func (r *BufferedReader) NextBufferIndex() int64 {
	r.counts = append(r.counts, -1)
	idx := r.bufferIndex
	r.bufferIndex++
	return idx
}

// SetBufferLineCount posts the number of lines or records in h. Each
// buffer posts exactly once.
func (r *BufferedReader) SetBufferLineCount(h *BufferHandle, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.buffers[h.Index]; !ok || cur != h {
		panic(fmt.Sprintf("INTERNAL Error: line count for unknown buffer %d of %q", h.Index, r.name))
	}
	if r.counts[h.Index] != -1 {
		panic(fmt.Sprintf("INTERNAL Error: line count for buffer %d of %q set twice", h.Index, r.name))
	}
	r.counts[h.Index] = count
	r.broadcast()
}

// Abort marks the reader as failed so waiting line lookups give up.
func (r *BufferedReader) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thrown = true
	r.broadcast()
}

func (r *BufferedReader) broadcast() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// LineNumber returns the 1-based line of record inBuf of buffer bufIndex.
// It waits until every earlier buffer has posted its count. The first
// successful lookup marks the reader as failed; later lookups, lookups
// after Abort, timeouts and cancellation report ok=false.
func (r *BufferedReader) LineNumber(ctx context.Context, bufIndex, inBuf int64) (line int64, ok bool) {
	timer := time.NewTimer(r.lineWait())
	defer timer.Stop()

	for {
		r.mu.Lock()
		if r.thrown {
			r.mu.Unlock()
			return 0, false
		}
		line = inBuf
		complete := true
		for b := int64(0); b < bufIndex && b < int64(len(r.counts)); b++ {
			if r.counts[b] == -1 {
				complete = false
				break
			}
			line += r.counts[b]
		}
		if complete {
			r.thrown = true
			r.broadcast()
			r.mu.Unlock()
			return line + 1, true
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return 0, false
		case <-timer.C:
			return 0, false
		}
	}
}

// ParseError builds the located error for a syntax error in record inBuf
// of buffer bufIndex.
func (r *BufferedReader) ParseError(ctx context.Context, bufIndex, inBuf int64, err error, extra string) error {
	offset, msg := syntaxDetails(err)
	line, _ := r.LineNumber(ctx, bufIndex, inBuf)
	return &ParseError{
		File:   r.name,
		Offset: offset,
		Unit:   r.opts.unit(),
		Line:   line,
		Msg:    msg,
		Extra:  extra,
	}
}

// TransformError builds the located error for a failed conversion.
func (r *BufferedReader) TransformError(ctx context.Context, bufIndex, inBuf int64, msg string) error {
	line, _ := r.LineNumber(ctx, bufIndex, inBuf)
	return &TransformError{File: r.name, Unit: r.opts.unit(), Line: line, Msg: msg}
}

// ObjectSizeError builds the error for a record that does not fit.
func (r *BufferedReader) ObjectSizeError(ctx context.Context, bufIndex, inBuf, offset, limit, size int64) error {
	line, _ := r.LineNumber(ctx, bufIndex, inBuf)
	return &ObjectSizeError{
		File:   r.name,
		Limit:  limit,
		Size:   size,
		Offset: offset,
		Unit:   r.opts.unit(),
		Line:   line,
	}
}

// Progress is the percentage of the file handed out to readers.
func (r *BufferedReader) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil || r.file.FileSize() <= 0 {
		return 0
	}
	return 100 - 100*float64(r.file.Remaining())/float64(r.file.FileSize())
}

// Close closes the underlying source and drops any registered buffers.
func (r *BufferedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buffers)
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
