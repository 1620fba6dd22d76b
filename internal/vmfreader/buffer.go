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
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/vmfscan/internal/vmfreader")

	bufferpoolGetsCounter metric.Int64Counter
	bufferpoolPutsCounter metric.Int64Counter
	bytesReadCounter      metric.Int64Counter
)

func init() {
	var err error

	bufferpoolGetsCounter, err = meter.Int64Counter(
		"vmfscan.reader.bufferpool.gets",
		metric.WithDescription("Total number of gets from the read buffer pool"),
	)
	if err != nil {
		panic(err)
	}

	bufferpoolPutsCounter, err = meter.Int64Counter(
		"vmfscan.reader.bufferpool.puts",
		metric.WithDescription("Total number of puts back to the read buffer pool"),
	)
	if err != nil {
		panic(err)
	}

	bytesReadCounter, err = meter.Int64Counter(
		"vmfscan.reader.bytes.read",
		metric.WithDescription("Bytes read from sources into scan buffers"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(err)
	}
}

// BufferHandle is one read buffer shared by the workers parsing it. The
// buffer is released when the last reader is done with it.
type BufferHandle struct {
	Index   int64
	readers atomic.Int64
	data    []byte
	size    int
}

// NewBufferHandle wraps data, of which the first size bytes are valid.
func NewBufferHandle(index, readers int64, data []byte, size int) *BufferHandle {
	h := &BufferHandle{Index: index, data: data, size: size}
	h.readers.Store(readers)
	return h
}

// Bytes returns the valid part of the buffer.
func (h *BufferHandle) Bytes() []byte { return h.data[:h.size] }

func (h *BufferHandle) Size() int { return h.size }

func (h *BufferHandle) Readers() int64 { return h.readers.Load() }

// Release drops one reader and reports whether it was the last.
func (h *BufferHandle) Release() bool {
	n := h.readers.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("INTERNAL Error: buffer %d released more often than it was shared", h.Index))
	}
	return n == 0
}

// BufferPool recycles read buffers of one capacity.
type BufferPool struct {
	pool  sync.Pool
	sz    int
	alloc atomic.Uint64
	gets  atomic.Uint64
	puts  atomic.Uint64
}

// NewBufferPool creates a pool handing out buffers of capacity bytes.
func NewBufferPool(capacity int) *BufferPool {
	p := &BufferPool{sz: capacity}
	p.pool = sync.Pool{
		New: func() any {
			p.alloc.Add(1)
			b := make([]byte, capacity)
			return &b
		},
	}
	return p
}

// Capacity is the size of the buffers the pool hands out.
func (p *BufferPool) Capacity() int { return p.sz }

// Get returns a buffer of Capacity bytes. Contents are not cleared.
func (p *BufferPool) Get() []byte {
	p.gets.Add(1)
	bufferpoolGetsCounter.Add(context.Background(), 1)
	return *(p.pool.Get().(*[]byte))
}

// Put returns a buffer to the pool. Buffers of a different size are dropped.
func (p *BufferPool) Put(b []byte) {
	if b == nil {
		return
	}
	p.puts.Add(1)
	bufferpoolPutsCounter.Add(context.Background(), 1)
	if cap(b) != p.sz {
		return
	}
	b = b[:p.sz]
	p.pool.Put(&b)
}

// BufferPoolStats contains counters for buffer pool usage.
type BufferPoolStats struct {
	Allocations uint64
	Gets        uint64
	Puts        uint64
}

// Leaked returns the number of buffers that were gotten but never returned.
func (s BufferPoolStats) Leaked() uint64 {
	return s.Gets - s.Puts
}

func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		Allocations: p.alloc.Load(),
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
	}
}
