package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sumire/bugtracker/internal/domain"
)

// LocalStore keeps attachment files on the local filesystem under a base
// directory.
type LocalStore struct {
	base string
}

// NewLocalStore creates a LocalStore rooted at base.
func NewLocalStore(base string) *LocalStore {
	return &LocalStore{base: base}
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: invalid storage key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(s.base, clean), nil
}

// Save writes the content under key.
func (s *LocalStore) Save(_ context.Context, key string, content io.Reader) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create attachment directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create attachment file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write attachment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close attachment file: %w", err)
	}
	return nil
}

// Open returns the stored content for reading.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("open attachment file: %w", err)
	}
	return f, nil
}

// Remove deletes the stored file. A second Remove of the same key is a no-op.
func (s *LocalStore) Remove(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove attachment file: %w", err)
	}
	return nil
}
