// Package atomicfile writes files via a temporary file and rename, so
// readers never observe a partially written report or backup.
package atomicfile

import (
	"os"
	"path/filepath"
)

// File is a write-only file that only appears at its destination path on a
// successful Close.
type File struct {
	f    *os.File
	path string
}

// New creates a temporary file next to path, creating parent directories as
// needed.
func New(path string) (*File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, err
	}
	return &File{f: f, path: path}, nil
}

func (f *File) Write(p []byte) (int, error) {
	return f.f.Write(p)
}

// Close finishes the write and moves the file into place.
func (f *File) Close() error {
	if err := f.f.Close(); err != nil {
		return err
	}
	return os.Rename(f.f.Name(), f.path)
}

// Abort discards the temporary file without touching the destination.
func (f *File) Abort() error {
	if err := f.f.Close(); err != nil {
		return err
	}
	return os.Remove(f.f.Name())
}
