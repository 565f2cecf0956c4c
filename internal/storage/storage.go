// Package storage abstracts the attachment file store.
package storage

import (
	"context"
	"io"
)

// Store persists attachment files under opaque keys.
type Store interface {
	// Save writes the content under key, creating parent directories as
	// needed.
	Save(ctx context.Context, key string, content io.Reader) error
	// Open returns the stored content for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the stored file. Removing a missing file is a no-op.
	Remove(ctx context.Context, key string) error
}
