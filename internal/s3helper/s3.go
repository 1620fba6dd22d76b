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
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const parquetContentType = "application/vnd.apache.parquet"

// IsURL reports whether u names an S3 location.
func IsURL(u string) bool {
	return strings.HasPrefix(u, "s3://")
}

// SplitURL splits s3://bucket/prefix. The prefix may be empty.
func SplitURL(u string) (bucket, prefix string, err error) {
	if !IsURL(u) {
		return "", "", fmt.Errorf("%q is not an s3:// URL", u)
	}
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(u, "s3://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", u)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// Uploader copies local files to S3.
type Uploader struct {
	up     *manager.Uploader
	tracer trace.Tracer
}

func NewUploader(client manager.UploadAPIClient) *Uploader {
	return &Uploader{
		up:     manager.NewUploader(client),
		tracer: otel.Tracer("github.com/cardinalhq/vmfscan/internal/s3helper"),
	}
}

// UploadFile uploads sourceFilename to bucket under prefix, keeping its
// base name, and returns the object key.
func (u *Uploader) UploadFile(ctx context.Context, bucket, prefix, sourceFilename string) (string, error) {
	key := path.Join(prefix, path.Base(sourceFilename))
	file, err := os.Open(sourceFilename)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	ctx, span := u.tracer.Start(ctx, "s3helper.UploadFile",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	_, err = u.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(parquetContentType),
		Metadata: map[string]string{
			"writer": "vmfscan",
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return key, nil
}
