package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
)

// Archiver files uploaded documents under their kind's prefix.
type Archiver struct {
	store  Store
	bucket string
	logger *slog.Logger
}

func NewArchiver(store Store, bucket string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, bucket: bucket, logger: logger}
}

// Key is the object key name would be archived under.
func Key(kind constants.DocumentKind, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return constants.StoragePrefixes[kind] + base
}

// Archive reports whether data was stored; failures are logged.
func (a *Archiver) Archive(ctx context.Context, kind constants.DocumentKind, name string, data []byte) bool {
	rid := common.RequestIDFromContext(ctx)
	if _, ok := constants.StoragePrefixes[kind]; !ok {
		a.logger.Error("storage.archive.unknown_kind", "req_id", rid, "kind", kind)
		return false
	}
	key := Key(kind, name)
	start := time.Now()
	err := a.store.Put(ctx, a.bucket, key, bytes.NewReader(data))
	metrics.ObserveExternal("storage", start, err)
	if err != nil {
		a.logger.Error("storage.archive.failed", "req_id", rid, "bucket", a.bucket, "key", key, "error", err)
		return false
	}
	a.logger.Info("storage.archive.ok", "req_id", rid, "bucket", a.bucket, "key", key, "bytes", len(data))
	return true
}
