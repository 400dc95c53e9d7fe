package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps bodies as <dir>/<id>.txt on local disk.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id int64) string {
	return filepath.Join(s.dir, objectName(id))
}

func (s *FileStore) Save(ctx context.Context, id int64, content string) error {
	return os.WriteFile(s.path(id), []byte(content), 0o644)
}

func (s *FileStore) Load(ctx context.Context, id int64) (string, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(b), nil
}

func (s *FileStore) Delete(ctx context.Context, id int64) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
