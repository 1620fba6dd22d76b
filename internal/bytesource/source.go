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

// Package bytesource provides the byte streams a scan reads from: local
// files, pipes, in-memory buffers, compressed streams and S3 objects.
package bytesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotSeekable is returned by ReadAt and Reset on sequential sources.
var ErrNotSeekable = errors.New("byte source is not seekable")

// Source is a handle over one input.
type Source interface {
	Name() string
	// Read reads the next bytes sequentially.
	Read(p []byte) (int, error)
	// ReadAt reads at an absolute offset. Only valid when CanSeek is true.
	ReadAt(p []byte, off int64) (int, error)
	// Size is the total size in bytes, or -1 when unknown.
	Size() int64
	CanSeek() bool
	IsPipe() bool
	// OnDisk reports whether the bytes live on a local file system.
	OnDisk() bool
	// Reset rewinds a seekable source to the start.
	Reset() error
	Close() error
}

// Duplicator is implemented by sources that can hand out an independent
// handle over the same bytes for another worker.
type Duplicator interface {
	Duplicate() (Source, error)
}

// Compression selects the decompressor wrapped around a source.
type Compression int

const (
	CompressionAuto Compression = iota
	CompressionNone
	CompressionGzip
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression maps a config string onto a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "auto", "auto_detect":
		return CompressionAuto, nil
	case "none", "uncompressed":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	}
	return CompressionAuto, fmt.Errorf("unknown compression %q", s)
}

// DetectCompression guesses the compression from a file extension.
func DetectCompression(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	}
	return CompressionNone
}

// Options configures Open.
type Options struct {
	Compression Compression
	// S3 is required for s3:// paths.
	S3 S3API
}

// Open opens path. "-" and "/dev/stdin" read standard input, s3://bucket/key
// reads an object, anything else is a local file.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	comp := opts.Compression
	if comp == CompressionAuto {
		comp = DetectCompression(path)
	}

	var (
		src Source
		err error
	)
	switch {
	case path == "-" || path == "/dev/stdin":
		src = NewPipe("<stdin>", os.Stdin)
	case strings.HasPrefix(path, "s3://"):
		if opts.S3 == nil {
			return nil, fmt.Errorf("opening %q: no S3 client configured", path)
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("opening %q: expected s3://bucket/key", path)
		}
		src, err = OpenS3(ctx, opts.S3, bucket, key)
	default:
		src, err = OpenFile(path)
	}
	if err != nil {
		return nil, err
	}

	switch comp {
	case CompressionGzip:
		return NewGzip(src)
	case CompressionZstd:
		return NewZstd(src)
	}
	return src, nil
}
