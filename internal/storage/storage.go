package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/campushub/apiserver/config"
)

// ObjectStorage defines the object operations used for profile pictures.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// New selects an object storage backend from config ("minio" or "gcs").
func New(ctx context.Context, cfg config.Config) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "minio":
		return NewMinioClient(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
