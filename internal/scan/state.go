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
	"sync"
	"sync/atomic"

	"github.com/cardinalhq/vmfscan/internal/vmfreader"
)

// state is shared by the workers of one pass over a list of readers.
// Readers are claimed in order under mu; buffers within a reader are
// claimed under that reader's own lock. The lock order is state, then
// reader.
type state struct {
	opts     Options
	sampling bool
	readers  []*vmfreader.BufferedReader
	pool     *vmfreader.BufferPool
	capacity int
	// parallel lets several workers split one newline delimited file. It
	// is only worth it when there are fewer files than workers.
	parallel bool

	mu        sync.Mutex
	fileIndex int

	batch atomic.Int64
}

func newState(opts Options, readers []*vmfreader.BufferedReader, pool *vmfreader.BufferPool, sampling bool) *state {
	return &state{
		opts:     opts,
		sampling: sampling,
		readers:  readers,
		pool:     pool,
		capacity: pool.Capacity(),
		parallel: !sampling && len(readers) < opts.threads(),
	}
}

// nextBatch hands out the next output position. Batches are emitted in
// the order their indexes were handed out.
func (s *state) nextBatch() int64 {
	return s.batch.Add(1) - 1
}

// advancePast moves the file index beyond r if it still points at r.
func (s *state) advancePast(r *vmfreader.BufferedReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advancePastLocked(r)
}

func (s *state) advancePastLocked(r *vmfreader.BufferedReader) {
	if s.fileIndex < len(s.readers) && s.readers[s.fileIndex] == r {
		s.fileIndex++
	}
}

// exhausted reports whether every read of r has been handed out in this
// pass. Callers hold mu. The reader lock is taken so that a final read
// has its batch before the next file can claim one.
func exhausted(r *vmfreader.BufferedReader) bool {
	r.Lock()
	defer r.Unlock()
	return r.HasFileHandle() && r.File().LastReadRequested()
}
