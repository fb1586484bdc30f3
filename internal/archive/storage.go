// Package archive keeps point-in-time copies of score records whose tier
// changed, in local files or object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("archive: object not found")

// MaxRecordSize bounds an archived record read back from object storage.
const MaxRecordSize = 1 << 20

const recordContentType = "application/json"

// readRecord reads an archived record, refusing anything over MaxRecordSize.
func readRecord(key string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRecordSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > MaxRecordSize {
		return nil, fmt.Errorf("read %s: record exceeds %d bytes", key, MaxRecordSize)
	}
	return data, nil
}

// Storage abstracts blob storage for archived records.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// key lays blobs out as <user>/<kind>/<id>.json.
func key(userID, kind, id string) string {
	return userID + "/" + kind + "/" + id + ".json"
}

// LocalStorage implements Storage using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

func (s *LocalStorage) Put(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}
