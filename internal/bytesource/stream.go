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

package bytesource

import (
	"io"
)

// streamSource is a sequential, non-rewindable source.
type streamSource struct {
	name   string
	r      io.Reader
	closer io.Closer
	size   int64
	pipe   bool
	onDisk bool
}

// NewPipe wraps a pipe such as standard input.
func NewPipe(name string, r io.Reader) Source {
	s := &streamSource{name: name, r: r, size: -1, pipe: true}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// FromReader wraps any reader as a sequential source of unknown size.
func FromReader(name string, r io.Reader) Source {
	s := &streamSource{name: name, r: r, size: -1}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *streamSource) Name() string               { return s.name }
func (s *streamSource) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *streamSource) Size() int64                { return s.size }
func (s *streamSource) CanSeek() bool              { return false }
func (s *streamSource) IsPipe() bool               { return s.pipe }
func (s *streamSource) OnDisk() bool               { return s.onDisk }
func (s *streamSource) Reset() error               { return ErrNotSeekable }

func (s *streamSource) ReadAt([]byte, int64) (int, error) {
	return 0, ErrNotSeekable
}

func (s *streamSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
