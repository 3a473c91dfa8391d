package adapter

import (
	"context"
	"time"
)

// ObjectStorageAdapter is the port for the S3-compatible object store holding
// uploaded images.
type ObjectStorageAdapter interface {
	GetObjectBytes(ctx context.Context, key string) ([]byte, error)
	PutObjectBytes(ctx context.Context, key string, data []byte, contentType string) error
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
