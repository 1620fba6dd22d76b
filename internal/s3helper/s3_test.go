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
package s3helper

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	manager.UploadAPIClient

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[name] = data
	f.types[name] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		in             string
		bucket, prefix string
		wantErr        bool
	}{
		{in: "s3://b", bucket: "b"},
		{in: "s3://b/", bucket: "b"},
		{in: "s3://b/out/day=1/", bucket: "b", prefix: "out/day=1"},
		{in: "s3:///x", wantErr: true},
		{in: "/tmp/out", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, prefix, err := SplitURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestUploadFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scan-0000.parquet")
	require.NoError(t, os.WriteFile(src, []byte("PAR1data"), 0o644))

	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	key, err := NewUploader(fake).UploadFile(context.Background(), "bucket", "out", src)
	require.NoError(t, err)
	assert.Equal(t, "out/scan-0000.parquet", key)
	assert.Equal(t, []byte("PAR1data"), fake.objects["bucket/out/scan-0000.parquet"])
	assert.Equal(t, parquetContentType, fake.types["bucket/out/scan-0000.parquet"])
}

func TestUploadFileMissing(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	_, err := NewUploader(fake).UploadFile(context.Background(), "bucket", "", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	assert.Empty(t, fake.objects)
}
