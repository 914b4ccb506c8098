package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore writes objects to Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	logger *slog.Logger
}

// NewGCSStore builds a client from application default credentials unless opts say otherwise.
func NewGCSStore(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*GCSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, logger: logger}, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, key string, r io.Reader) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("storage.gcs.put", "bucket", bucket, "key", key, "bytes", n)
	return nil
}

func (s *GCSStore) Close() error { return s.client.Close() }
