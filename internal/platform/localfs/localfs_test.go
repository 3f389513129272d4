package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageSink(t *testing.T) {
	t.Parallel()

	t.Run("empty directory rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewImageSink("")
		assert.Error(t, err)
	})

	t.Run("saves and returns the path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sink, err := NewImageSink(filepath.Join(dir, "images"))
		require.NoError(t, err)

		data := []byte{0x89, 'P', 'N', 'G'}
		path, err := sink.SavePNG(context.Background(), "page-1", data)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "images", "page-1.png"), path)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("overwrite replaces the previous image", func(t *testing.T) {
		t.Parallel()

		sink, err := NewImageSink(t.TempDir())
		require.NoError(t, err)

		ctx := context.Background()
		_, err = sink.SavePNG(ctx, "page-1", []byte("v1"))
		require.NoError(t, err)
		path, err := sink.SavePNG(ctx, "page-1", []byte("v2"))
		require.NoError(t, err)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		sink, err := NewImageSink(t.TempDir())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = sink.SavePNG(ctx, "page-1", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestArtifactWriter(t *testing.T) {
	t.Parallel()

	t.Run("success and failure land in separate files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writer, err := NewArtifactWriter(dir)
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, writer.WriteSuccess(ctx, "page-1", "a description"))
		require.NoError(t, writer.WriteFailure(ctx, "page-2", "content blocked"))

		success, err := os.ReadFile(filepath.Join(dir, "page-1.txt"))
		require.NoError(t, err)
		assert.Equal(t, "a description", string(success))

		failure, err := os.ReadFile(filepath.Join(dir, "page-2.error.txt"))
		require.NoError(t, err)
		assert.Equal(t, "content blocked", string(failure))
	})

	t.Run("empty directory rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewArtifactWriter("")
		assert.Error(t, err)
	})
}
