package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

var DefaultDir = "/tmp/oge-cache"

type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (c *File) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes through a temp file so concurrent readers never observe a
// partial entry.
func (c *File) Set(_ context.Context, key string, value []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}
