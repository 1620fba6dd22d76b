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
	"bytes"
	"fmt"
	"io"
	"os"
)

type fileSource struct {
	name string
	f    *os.File
	size int64
}

// OpenFile opens a local file. FIFOs and character devices come back as
// pipes.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if st.Mode()&(os.ModeNamedPipe|os.ModeCharDevice) != 0 {
		return NewPipe(path, f), nil
	}
	return &fileSource{name: path, f: f, size: st.Size()}, nil
}

func (s *fileSource) Name() string                            { return s.name }
func (s *fileSource) Read(p []byte) (int, error)              { return s.f.Read(p) }
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) CanSeek() bool                           { return true }
func (s *fileSource) IsPipe() bool                            { return false }
func (s *fileSource) OnDisk() bool                            { return true }
func (s *fileSource) Close() error                            { return s.f.Close() }

func (s *fileSource) Reset() error {
	_, err := s.f.Seek(0, io.SeekStart)
	return err
}

func (s *fileSource) Duplicate() (Source, error) {
	return OpenFile(s.name)
}

type memSource struct {
	name string
	data []byte
	r    *bytes.Reader
}

// FromBytes wraps an in-memory buffer as a seekable source.
func FromBytes(name string, data []byte) Source {
	return &memSource{name: name, data: data, r: bytes.NewReader(data)}
}

func (s *memSource) Name() string                            { return s.name }
func (s *memSource) Read(p []byte) (int, error)              { return s.r.Read(p) }
func (s *memSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *memSource) Size() int64                             { return int64(len(s.data)) }
func (s *memSource) CanSeek() bool                           { return true }
func (s *memSource) IsPipe() bool                            { return false }
func (s *memSource) OnDisk() bool                            { return false }
func (s *memSource) Close() error                            { return nil }

func (s *memSource) Reset() error {
	s.r.Reset(s.data)
	return nil
}

func (s *memSource) Duplicate() (Source, error) {
	return FromBytes(s.name, s.data), nil
}
