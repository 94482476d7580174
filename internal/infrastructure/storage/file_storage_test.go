package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_Save(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())

	t.Run("creates parent directories", func(t *testing.T) {
		err := fs.Save(ctx, filepath.Join("2025-03-01", "scan.png"), []byte("png"))

		require.NoError(t, err)
		content, err := os.ReadFile(filepath.Join(tempDir, "2025-03-01", "scan.png"))
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), content)
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "file.txt", []byte("original")))
		require.NoError(t, fs.Save(ctx, "file.txt", []byte("updated")))

		content, err := fs.Read(ctx, "file.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("updated"), content)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		err := fs.Save(ctx, filepath.Join("..", "..", "etc", "passwd"), []byte("x"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})

	t.Run("rejects the base directory itself", func(t *testing.T) {
		assert.Error(t, fs.Save(ctx, ".", []byte("x")))
	})
}

func TestLocalFileStorage_SaveNew(t *testing.T) {
	ctx := context.Background()
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	require.NoError(t, fs.SaveNew(ctx, "a.png", []byte("first")))

	err := fs.SaveNew(ctx, "a.png", []byte("second"))

	assert.ErrorIs(t, err, ErrExists)
	content, err := fs.Read(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), content)
}

func TestLocalFileStorage_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	assert.False(t, fs.Exists(ctx, "gone.png"))
	require.NoError(t, fs.Save(ctx, "gone.png", []byte{}))
	assert.True(t, fs.Exists(ctx, "gone.png"))

	require.NoError(t, fs.Delete(ctx, "gone.png"))
	assert.False(t, fs.Exists(ctx, "gone.png"))
	assert.NoError(t, fs.Delete(ctx, "gone.png"), "delete is idempotent")
}
