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
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
)

// FileHandle is the read cursor over one source. Read slots are handed out
// by GetPositionAndSize under the owning reader's lock; the reads
// themselves may run concurrently on seekable sources.
//
// Sequential sources cannot be rewound, so every byte read during a sample
// run is also kept in a cache and replayed on the next pass.
type FileHandle struct {
	src     bytesource.Source
	canSeek bool
	size    int64

	readPosition      int64
	requestedReads    atomic.Int64
	actualReads       atomic.Int64
	lastReadRequested atomic.Bool

	cached     [][]byte
	cachedSize int64
}

// NewFileHandle wraps an open source.
func NewFileHandle(src bytesource.Source) *FileHandle {
	return &FileHandle{
		src:     src,
		canSeek: src.CanSeek(),
		size:    src.Size(),
	}
}

func (h *FileHandle) IsOpen() bool { return h.src != nil }

// Close closes the source. Pipes stay open.
func (h *FileHandle) Close() error {
	if h.src == nil || h.src.IsPipe() {
		return nil
	}
	err := h.src.Close()
	h.src = nil
	return err
}

// Reset rewinds the cursor for another pass. All handed out reads must
// have completed.
func (h *FileHandle) Reset() error {
	if !h.RequestedReadsComplete() {
		panic(fmt.Sprintf("INTERNAL Error: resetting %q with %d of %d reads outstanding",
			h.Name(), h.requestedReads.Load()-h.actualReads.Load(), h.requestedReads.Load()))
	}
	h.readPosition = 0
	h.requestedReads.Store(0)
	h.actualReads.Store(0)
	h.lastReadRequested.Store(false)
	if h.IsOpen() && h.canSeek {
		return h.src.Reset()
	}
	return nil
}

func (h *FileHandle) Name() string {
	if h.src == nil {
		return ""
	}
	return h.src.Name()
}

func (h *FileHandle) RequestedReadsComplete() bool {
	return h.requestedReads.Load() == h.actualReads.Load()
}

func (h *FileHandle) LastReadRequested() bool { return h.lastReadRequested.Load() }

// FileSize is the source size, or -1 when unknown.
func (h *FileHandle) FileSize() int64 { return h.size }

// Position is the file offset of the next read. Callers hold the reader
// lock.
func (h *FileHandle) Position() int64 { return h.readPosition }

// Remaining is the number of bytes not yet handed out.
func (h *FileHandle) Remaining() int64 {
	if h.size < 0 {
		return -1
	}
	return h.size - h.readPosition
}

func (h *FileHandle) CanSeek() bool { return h.canSeek }

func (h *FileHandle) IsPipe() bool { return h.src != nil && h.src.IsPipe() }

// Source exposes the underlying source, for duplicating per worker.
func (h *FileHandle) Source() bytesource.Source { return h.src }

// GetPositionAndSize reserves the next slot of at most requested bytes.
// A zero sized slot marks the end of the file; after it has been handed
// out, ok is false. Callers hold the reader lock.
func (h *FileHandle) GetPositionAndSize(requested int64) (position, size int64, ok bool) {
	if requested <= 0 {
		panic("INTERNAL Error: GetPositionAndSize called with non-positive size")
	}
	if h.size < 0 {
		panic("INTERNAL Error: positional reads need a source of known size")
	}
	if h.lastReadRequested.Load() {
		return 0, 0, false
	}
	position = h.readPosition
	size = min(requested, h.Remaining())
	h.readPosition += size
	h.requestedReads.Add(1)
	if size == 0 {
		h.lastReadRequested.Store(true)
	}
	return position, size, true
}

// ReadAtPosition fills p from position, which must come from
// GetPositionAndSize. fileDone is true when this completed the final
// outstanding read after the end slot was handed out. override, when not
// nil, is a duplicate handle owned by the calling worker.
func (h *FileHandle) ReadAtPosition(p []byte, position int64, sampleRun bool, override bytesource.Source) (fileDone bool, err error) {
	defer func() {
		actual := h.actualReads.Add(1)
		requested := h.requestedReads.Load()
		if actual > requested {
			panic("INTERNAL Error: file handle performed more actual reads than requested reads")
		}
		fileDone = h.lastReadRequested.Load() && actual == requested
	}()

	if len(p) == 0 {
		return false, nil
	}
	src := h.src
	if override != nil {
		src = override
	}
	switch {
	case h.canSeek:
		err = readFullAt(src, p, position)
	case sampleRun:
		var n int
		n, err = readFull(src, p)
		h.cache(p[:n])
	default:
		n := h.readFromCache(p, position)
		if n < len(p) {
			_, err = readFull(src, p[n:])
		}
	}
	if err != nil {
		return false, fmt.Errorf("reading %q at %d: %w", h.Name(), position, err)
	}
	bytesReadCounter.Add(context.Background(), int64(len(p)))
	return false, nil
}

// Read fills p sequentially and is used for sources that cannot seek.
// ok is false once the end of the file has already been reached.
func (h *FileHandle) Read(p []byte, sampleRun bool) (n int, fileDone bool, ok bool, err error) {
	if len(p) == 0 {
		panic("INTERNAL Error: Read called with empty buffer")
	}
	if h.lastReadRequested.Load() {
		return 0, false, false, nil
	}
	switch {
	case h.canSeek:
		n, err = readFull(h.src, p)
	case sampleRun:
		n, err = readFull(h.src, p)
		h.cache(p[:n])
	default:
		n = h.readFromCache(p, h.readPosition)
		if n < len(p) {
			var m int
			m, err = readFull(h.src, p[n:])
			n += m
		}
	}
	h.readPosition += int64(n)
	bytesReadCounter.Add(context.Background(), int64(n))
	if err != nil {
		return n, false, true, fmt.Errorf("reading %q: %w", h.Name(), err)
	}
	if n == 0 {
		h.lastReadRequested.Store(true)
		fileDone = true
	}
	return n, fileDone, true, nil
}

func (h *FileHandle) cache(p []byte) {
	if len(p) == 0 {
		return
	}
	h.cached = append(h.cached, append([]byte(nil), p...))
	h.cachedSize += int64(len(p))
}

// CachedSize is the number of bytes held for replay.
func (h *FileHandle) CachedSize() int64 { return h.cachedSize }

// readFromCache copies cached bytes covering [position, position+len(p))
// into p and returns how many were available.
func (h *FileHandle) readFromCache(p []byte, position int64) int {
	if position >= h.cachedSize {
		return 0
	}
	var copied int
	var offset int64
	for _, buf := range h.cached {
		if copied == len(p) {
			break
		}
		end := offset + int64(len(buf))
		if position < end {
			n := copy(p[copied:], buf[position-offset:])
			copied += n
			position += int64(n)
		}
		offset = end
	}
	return copied
}

// readFull reads until p is full or the source is exhausted. Pipes may
// return short reads.
func readFull(src bytesource.Source, p []byte) (int, error) {
	var total int
	for total < len(p) {
		n, err := src.Read(p[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func readFullAt(src bytesource.Source, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
