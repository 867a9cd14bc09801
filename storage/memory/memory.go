// Package memory keeps blobs in an ordered in-memory index. It is meant
// for tests and for sorts small enough that their runs fit in RAM.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/btree"
	"github.com/jvahrenhold/tpie/storage"
)

const degree = 16

type blob struct {
	name string
	data []byte
}

func lessBlob(a, b *blob) bool {
	return a.name < b.name
}

// Storage implements storage.Store in memory. It is safe for concurrent
// use.
type Storage struct {
	mu    sync.RWMutex
	blobs *btree.BTreeG[*blob]
}

func NewMemoryStorage() *Storage {
	return &Storage{
		blobs: btree.NewG(degree, lessBlob),
	}
}

func (s *Storage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	return &writer{s: s, name: name}, nil
}

func (s *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	b, ok := s.blobs.Get(&blob{name: name})
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: open %s: %w", name, storage.ErrNotFound)
	}
	// Blobs are never modified after commit, so readers share the bytes.
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *Storage) Remove(_ context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	_, ok := s.blobs.Delete(&blob{name: name})
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: remove %s: %w", name, storage.ErrNotFound)
	}
	return nil
}

func (s *Storage) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, s.blobs.Len())
	s.blobs.Ascend(func(b *blob) bool {
		names = append(names, b.name)
		return true
	})
	return names, nil
}

// Size returns the total number of bytes stored.
func (s *Storage) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	s.blobs.Ascend(func(b *blob) bool {
		n += int64(len(b.data))
		return true
	})
	return n
}

func (s *Storage) commit(b *blob) {
	s.mu.Lock()
	s.blobs.ReplaceOrInsert(b)
	s.mu.Unlock()
}

type writer struct {
	s      *Storage
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("memory: write %s: writer closed", w.name)
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.s.commit(&blob{name: w.name, data: w.buf.Bytes()})
	return nil
}
