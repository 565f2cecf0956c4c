package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/bugtracker/internal/domain"
)

func TestLocalStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Save(ctx, "issue-1/abc.txt", strings.NewReader("hello")))

	rc, err := store.Open(ctx, "issue-1/abc.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreSaveRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Save(ctx, "issue-1/abc.txt", strings.NewReader("one")))
	assert.Error(t, store.Save(ctx, "issue-1/abc.txt", strings.NewReader("two")))
}

func TestLocalStoreOpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Open(context.Background(), "issue-9/missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStoreRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Save(ctx, "issue-1/abc.txt", strings.NewReader("bye")))
	require.NoError(t, store.Remove(ctx, "issue-1/abc.txt"))

	// removing an already removed file is not an error
	assert.NoError(t, store.Remove(ctx, "issue-1/abc.txt"))

	_, err := store.Open(ctx, "issue-1/abc.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	for _, key := range []string{"../outside.txt", "../../etc/passwd", "/abs.txt"} {
		err := store.Save(ctx, key, strings.NewReader("nope"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "key %q", key)
	}
}
