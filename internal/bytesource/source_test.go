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
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"a":1}
{"a":2}
{"a":3}
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenFile(t *testing.T) {
	path := writeFile(t, "data.vmf", []byte(payload))
	src, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.True(t, src.CanSeek())
	assert.True(t, src.OnDisk())
	assert.False(t, src.IsPipe())
	assert.Equal(t, int64(len(payload)), src.Size())

	buf := make([]byte, 7)
	n, err := src.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(buf[:n]))

	all, err := io.ReadAll(sequential{src})
	require.NoError(t, err)
	assert.Equal(t, payload, string(all))

	require.NoError(t, src.Reset())
	n, err = src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(buf[:n]))

	dup, err := src.(Duplicator).Duplicate()
	require.NoError(t, err)
	defer func() { _ = dup.Close() }()
	n, err = dup.ReadAt(buf, 16)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3}`, string(buf[:n]))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.vmf"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeFile(t, "data.vmf.gz", buf.Bytes())
	src, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.False(t, src.CanSeek())
	assert.ErrorIs(t, src.Reset(), ErrNotSeekable)
	all, err := io.ReadAll(sequential{src})
	require.NoError(t, err)
	assert.Equal(t, payload, string(all))
}

func TestOpenZstdExplicit(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(payload), nil)
	require.NoError(t, enc.Close())

	path := writeFile(t, "data.bin", compressed)
	src, err := Open(context.Background(), path, Options{Compression: CompressionZstd})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	all, err := io.ReadAll(sequential{src})
	require.NoError(t, err)
	assert.Equal(t, payload, string(all))
}

func TestFromReaderIsSequential(t *testing.T) {
	src := FromReader("r", bytes.NewBufferString(payload))
	assert.False(t, src.CanSeek())
	assert.Equal(t, int64(-1), src.Size())
	_, err := src.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrNotSeekable)

	pipe := NewPipe("p", io.NopCloser(bytes.NewBufferString(payload)))
	assert.True(t, pipe.IsPipe())
	assert.NoError(t, pipe.Close())
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"":     CompressionAuto,
		"gzip": CompressionGzip,
		"ZSTD": CompressionZstd,
		"none": CompressionNone,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("lz4")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	gets    int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	var start, end int
	if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	if start >= len(data) {
		return nil, errors.New("invalid range")
	}
	if end >= len(data) {
		end = len(data) - 1
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data[start : end+1]))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"bucket/logs/a.vmf": []byte(payload)}}
	src, err := Open(context.Background(), "s3://bucket/logs/a.vmf", Options{S3: client})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.True(t, src.CanSeek())
	assert.Equal(t, "s3://bucket/logs/a.vmf", src.Name())
	assert.Equal(t, int64(len(payload)), src.Size())

	buf := make([]byte, 7)
	n, err := src.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(buf[:n]))

	big := make([]byte, 100)
	n, err = src.ReadAt(big, 16)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "{\"a\":3}\n", string(big[:n]))

	all, err := io.ReadAll(sequential{src})
	require.NoError(t, err)
	assert.Equal(t, payload, string(all))
}

func TestS3Errors(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	_, err := Open(context.Background(), "s3://bucket/missing", Options{S3: client})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = Open(context.Background(), "s3://bucket", Options{S3: client})
	assert.Error(t, err)

	_, err = Open(context.Background(), "s3://bucket/key", Options{})
	assert.Error(t, err)
}
