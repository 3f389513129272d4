// Package localfs provides filesystem-backed implementations of the
// image sink and artifact writer contracts, for deployments that keep
// generated assets on local disk.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ImageSink stores generated images as PNG files under a base
// directory and returns the stored path.
type ImageSink struct {
	dir string
}

// NewImageSink creates the base directory if needed and returns a sink
// writing into it.
func NewImageSink(dir string) (*ImageSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageSink{dir: dir}, nil
}

// SavePNG writes the image bytes to <dir>/<identity>.png and returns
// the path. The write goes through a temp file and rename so a crashed
// process never leaves a truncated image behind.
func (s *ImageSink) SavePNG(ctx context.Context, identity string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, identity+".png")
	tmp, err := os.CreateTemp(s.dir, identity+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize image file: %w", err)
	}

	return path, nil
}

// ArtifactWriter records per-item outcomes as files under a base
// directory: <identity>.txt for successes, <identity>.error.txt for
// failures.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates the base directory if needed and returns a
// writer recording into it.
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &ArtifactWriter{dir: dir}, nil
}

// WriteSuccess records the item's result payload.
func (w *ArtifactWriter) WriteSuccess(ctx context.Context, identity, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, identity+".txt")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("failed to write success artifact: %w", err)
	}
	return nil
}

// WriteFailure records the item's final error message.
func (w *ArtifactWriter) WriteFailure(ctx context.Context, identity, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, identity+".error.txt")
	if err := os.WriteFile(path, []byte(message), 0o644); err != nil {
		return fmt.Errorf("failed to write failure artifact: %w", err)
	}
	return nil
}
