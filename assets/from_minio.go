package assets

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
)

// FromMinio loads an asset from MinIO or any S3-compatible object store.
type FromMinio struct {
	client    *minio.Client
	bucket    string
	key       string
	sourceURL *url.URL
}

// NewFromMinio creates a loader for one object. The key may include a prefix
// path inside the bucket.
func NewFromMinio(client *minio.Client, bucket, key string) (*FromMinio, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", ErrNotAvailable)
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: bucket and key are required", ErrNotAvailable)
	}

	key = path.Clean(key)

	sourceURL := &url.URL{Scheme: "s3", Host: bucket, Path: "/" + key}

	return &FromMinio{
		client:    client,
		bucket:    bucket,
		key:       key,
		sourceURL: sourceURL,
	}, nil
}

func (l *FromMinio) GetReader(ctx context.Context) (io.ReadCloser, error) {
	// Stat first so a missing object surfaces here rather than on first read.
	if _, err := l.client.StatObject(ctx, l.bucket, l.key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotAvailable, l.bucket, l.key)
		}
		return nil, err
	}

	obj, err := l.client.GetObject(ctx, l.bucket, l.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (l *FromMinio) SourceURL() *url.URL {
	return l.sourceURL
}

func (l *FromMinio) String() string {
	return fmt.Sprintf("assets.FromMinio{Bucket: %s, Key: %s}", l.bucket, l.key)
}
