package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// FilesystemBlobStore хранит объекты в локальной директории, ключ: относительный путь
type FilesystemBlobStore struct {
	baseDir string
}

// NewFilesystemBlobStore создаёт хранилище и базовую директорию
func NewFilesystemBlobStore(baseDir string) (*FilesystemBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemBlobStore{baseDir: filepath.Clean(baseDir)}, nil
}

// Get открывает файл по ключу
func (s *FilesystemBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", entity.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Put записывает файл через временный, чтобы читатель не увидел половину объекта
func (s *FilesystemBlobStore) Put(ctx context.Context, key string, body io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// resolve не даёт ключу выйти за пределы базовой директории
func (s *FilesystemBlobStore) resolve(key string) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if path != s.baseDir && !strings.HasPrefix(path, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q: path traversal detected", key)
	}
	return path, nil
}

var _ port.BlobStore = (*FilesystemBlobStore)(nil)
