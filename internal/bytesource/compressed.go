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
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// compressedSource decompresses an underlying source. The result is
// sequential even when the underlying source is not. Size reports the
// compressed size so progress can still be estimated.
type compressedSource struct {
	inner   Source
	r       io.Reader
	release func() error
}

// NewGzip wraps src with a gzip decompressor.
func NewGzip(src Source) (Source, error) {
	zr, err := gzip.NewReader(sequential{src})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("opening gzip stream %q: %w", src.Name(), err)
	}
	return &compressedSource{inner: src, r: zr, release: zr.Close}, nil
}

// NewZstd wraps src with a zstd decompressor.
func NewZstd(src Source) (Source, error) {
	zr, err := zstd.NewReader(sequential{src})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("opening zstd stream %q: %w", src.Name(), err)
	}
	return &compressedSource{inner: src, r: zr, release: func() error {
		zr.Close()
		return nil
	}}, nil
}

func (s *compressedSource) Name() string               { return s.inner.Name() }
func (s *compressedSource) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *compressedSource) Size() int64                { return s.inner.Size() }
func (s *compressedSource) CanSeek() bool              { return false }
func (s *compressedSource) IsPipe() bool               { return s.inner.IsPipe() }
func (s *compressedSource) OnDisk() bool               { return s.inner.OnDisk() }
func (s *compressedSource) Reset() error               { return ErrNotSeekable }

func (s *compressedSource) ReadAt([]byte, int64) (int, error) {
	return 0, ErrNotSeekable
}

func (s *compressedSource) Close() error {
	var result *multierror.Error
	if err := s.release(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.inner.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// sequential adapts a Source to io.Reader without exposing ReadAt.
type sequential struct{ src Source }

func (s sequential) Read(p []byte) (int, error) { return s.src.Read(p) }
