package storage

import (
	"context"
	"io"
)

// Store writes objects. Keys use forward slashes regardless of backend.
type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader) error
}
