package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalStorage implements TileStore on a filesystem rooted at basePath
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	return NewLocalStorageFs(afero.NewOsFs(), basePath)
}

// NewLocalStorageFs creates a local storage on top of an arbitrary afero filesystem
func NewLocalStorageFs(fs afero.Fs, basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &LocalStorage{
		fs:       fs,
		basePath: basePath,
	}, nil
}

// Stat returns the size of the file at key
func (s *LocalStorage) Stat(ctx context.Context, key string) (int64, error) {
	fullPath := s.keyToPath(key)

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotExist
		}
		return 0, fmt.Errorf("failed to stat file %s: %w", fullPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", fullPath)
	}

	return info.Size(), nil
}

// Put writes content to a temporary file next to the target and renames it into place
func (s *LocalStorage) Put(ctx context.Context, key string, content []byte) error {
	fullPath := s.keyToPath(key)

	dir := filepath.Dir(fullPath)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tile-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close file %s: %w", fullPath, err)
	}

	if err := s.fs.Rename(tmpName, fullPath); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to move file into place %s: %w", fullPath, err)
	}

	return nil
}

// Get retrieves content from the given key
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath := s.keyToPath(key)

	content, err := afero.ReadFile(s.fs, fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to read file %s: %w", fullPath, err)
	}

	return content, nil
}

// Delete removes a file at the given key
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath := s.keyToPath(key)

	if err := s.fs.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}
	return nil
}

// Close is a no-op for the filesystem backend
func (s *LocalStorage) Close() error {
	return nil
}

// Path returns the filesystem path for key
func (s *LocalStorage) Path(key string) string {
	return s.keyToPath(key)
}

// GetBasePath returns the base path for this storage
func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}

// keyToPath converts a storage key to a filesystem path
func (s *LocalStorage) keyToPath(key string) string {
	// Clean the key to prevent path traversal
	cleanKey := filepath.Clean("/" + key)
	cleanKey = strings.TrimPrefix(cleanKey, "/")
	cleanKey = strings.TrimPrefix(cleanKey, "\\")

	return filepath.Join(s.basePath, cleanKey)
}
