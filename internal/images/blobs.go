package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by BlobStore.Get for an id with no image.
var ErrNotFound = errors.New("image not found")

// BlobStore keeps one image per card id.
type BlobStore interface {
	Has(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) ([]byte, string, error)
	Put(ctx context.Context, id int64, data []byte, contentType string) error
}

// DirStore is a BlobStore over a directory of <id>.jpg files.
type DirStore struct {
	Dir string
}

func (d DirStore) path(id int64) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%d.jpg", id))
}

func (d DirStore) Has(_ context.Context, id int64) (bool, error) {
	_, err := os.Stat(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (d DirStore) Get(_ context.Context, id int64) ([]byte, string, error) {
	data, err := os.ReadFile(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %d: %w", id, err)
	}
	return data, "image/jpeg", nil
}

// Put writes through a temporary file so a watcher never sees a partial image.
func (d DirStore) Put(_ context.Context, id int64, data []byte, _ string) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(d.Dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image %d: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image %d: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), d.path(id)); err != nil {
		return fmt.Errorf("failed to store image %d: %w", id, err)
	}
	return nil
}
