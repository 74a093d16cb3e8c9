// Package archive uploads finished checkpoint files to durable blob
// storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlobStore writes one artifact and returns its location URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Archiver snapshots a run's checkpoint file into a blob store so the
// working copy can keep accumulating across runs.
type Archiver struct {
	blobs  BlobStore
	prefix string
	logger *zap.Logger
}

// NewArchiver constructs an archiver writing under the given key prefix.
func NewArchiver(blobs BlobStore, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{blobs: blobs, prefix: prefix, logger: logger}
}

// ArchiveFile uploads the file under <prefix>/<runID>/<basename> and
// returns the blob URI.
func (a *Archiver) ArchiveFile(ctx context.Context, runID uuid.UUID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer f.Close()

	key := fmt.Sprintf("%s/%s/%s", a.prefix, runID, filepath.Base(path))
	uri, err := a.blobs.PutObject(ctx, key, "text/csv", f)
	if err != nil {
		return "", fmt.Errorf("archive checkpoint %s: %w", path, err)
	}
	a.logger.Info("checkpoint archived",
		zap.String("run_id", runID.String()), zap.String("uri", uri))
	return uri, nil
}
