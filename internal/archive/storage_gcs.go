package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// gcsStorage keeps archived records in a Cloud Storage bucket, authenticated
// with Application Default Credentials.
type gcsStorage struct {
	bucket *gcs.BucketHandle
	name   string
}

func openGCS(ctx context.Context, cfg Config) (*gcsStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs archive: ARCHIVE_BUCKET is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs archive: %w", err)
	}
	return &gcsStorage{bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket}, nil
}

func (s *gcsStorage) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = recordContentType
	// Records are small; upload in a single request.
	w.ChunkSize = 0
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("archive gs://%s/%s: %w", s.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive gs://%s/%s: %w", s.name, key, err)
	}
	return nil
}

func (s *gcsStorage) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.name, key, err)
	}
	defer r.Close()
	return readRecord(key, r)
}
