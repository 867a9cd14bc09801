package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jvahrenhold/tpie/storage"
)

// pendingDir holds blobs that are still being written. Closing the writer
// renames them into place.
const pendingDir = ".pending"

// Storage implements storage.Store using the local filesystem.
type Storage struct {
	dir string
}

// NewLocalStorage stores blobs as files in dir, creating it if needed.
func NewLocalStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Join(dir, pendingDir), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the directory blobs are stored in.
func (s *Storage) Dir() string {
	return s.dir
}

// Create writes name under the pending directory. The file replaces any
// existing blob only when the writer is closed.
func (s *Storage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	file, err := os.CreateTemp(filepath.Join(s.dir, pendingDir), name+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", name, err)
	}
	return &pendingFile{file: file, target: s.path(name)}, nil
}

func (s *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	file, err := os.Open(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, notFound(err))
	}
	return file, nil
}

func (s *Storage) Remove(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", name, notFound(err))
	}
	return nil
}

// List returns the files in the storage directory. Subdirectories are
// skipped.
func (s *Storage) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.dir, name)
}

func validateName(name string) error {
	if name == pendingDir {
		return fmt.Errorf("%w: %q is reserved", storage.ErrInvalidName, name)
	}
	return storage.ValidateName(name)
}

type pendingFile struct {
	file   *os.File
	target string
	closed bool
}

func (f *pendingFile) Write(p []byte) (int, error) {
	return f.file.Write(p)
}

// Close publishes the file under its blob name. If the data cannot be
// flushed the pending file is dropped and the previous blob is kept.
func (f *pendingFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.file.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close file %s: %w", f.target, err), os.Remove(f.file.Name()))
	}
	if err := os.Rename(f.file.Name(), f.target); err != nil {
		return errors.Join(fmt.Errorf("failed to publish file %s: %w", f.target, err), os.Remove(f.file.Name()))
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Join(storage.ErrNotFound, err)
	}
	return err
}
