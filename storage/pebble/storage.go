// Package pebble stores blobs in a Pebble LSM. A blob is split into chunks
// stored under d/<name>/<index>, and a manifest under m/<name> records the
// chunk count and total size once the blob is complete.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/jvahrenhold/tpie/storage"
)

const (
	dataNamespace     = "d/"
	manifestNamespace = "m/"

	defaultChunkSize = 256 * 1024
	maxBatchSize     = 8 << 20
)

// StorageOptions configures the storage.
type StorageOptions struct {
	Path      string
	ChunkSize int
	CacheSize int64

	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

// Storage implements storage.Store using Pebble. Replacing a blob while it
// is being read is not supported.
type Storage struct {
	db        *pebble.DB
	chunkSize int
}

func NewStorage(opts StorageOptions) (*Storage, error) {
	pebbleOpts := &pebble.Options{FS: opts.FS}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		pebbleOpts.Cache = cache
	}

	if opts.FS == nil {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := pebble.Open(opts.Path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", opts.Path, err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Storage{db: db, chunkSize: chunkSize}, nil
}

func (p *Storage) Close() error {
	return p.db.Close()
}

func (p *Storage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	w := &writer{
		p:     p,
		name:  name,
		batch: p.db.NewBatch(),
		buf:   make([]byte, 0, p.chunkSize),
	}
	return w, nil
}

func (p *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := p.manifest(name); err != nil {
		return nil, err
	}

	lower, upper := dataBounds(name)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", name, err)
	}
	return &reader{iter: iter}, nil
}

func (p *Storage) Remove(_ context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if _, err := p.manifest(name); err != nil {
		return err
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	lower, upper := dataBounds(name)
	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return err
	}
	if err := batch.Delete(manifestKey(name), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

func (p *Storage) List(_ context.Context) ([]string, error) {
	prefix := []byte(manifestNamespace)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len(prefix):]))
	}
	return names, iter.Error()
}

// Manifest describes a complete blob.
type Manifest struct {
	Chunks uint64
	Size   uint64
}

func (m Manifest) encode() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b, m.Chunks)
	binary.BigEndian.PutUint64(b[8:], m.Size)
	return b
}

func decodeManifest(b []byte) (Manifest, error) {
	if len(b) != 16 {
		return Manifest{}, fmt.Errorf("pebble: manifest has %d bytes", len(b))
	}
	return Manifest{
		Chunks: binary.BigEndian.Uint64(b),
		Size:   binary.BigEndian.Uint64(b[8:]),
	}, nil
}

func (p *Storage) manifest(name string) (Manifest, error) {
	value, closer, err := p.db.Get(manifestKey(name))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Manifest{}, fmt.Errorf("pebble: %s: %w", name, storage.ErrNotFound)
		}
		return Manifest{}, fmt.Errorf("pebble: failed to load manifest: %w", err)
	}
	defer closer.Close()
	return decodeManifest(value)
}

// Stat returns the manifest of a complete blob.
func (p *Storage) Stat(name string) (Manifest, error) {
	if err := storage.ValidateName(name); err != nil {
		return Manifest{}, err
	}
	return p.manifest(name)
}

func manifestKey(name string) []byte {
	return []byte(manifestNamespace + name)
}

func dataKey(name string, chunk uint64) []byte {
	key := make([]byte, 0, len(dataNamespace)+len(name)+9)
	key = append(key, dataNamespace...)
	key = append(key, name...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, chunk)
}

func dataBounds(name string) (lower, upper []byte) {
	lower = []byte(dataNamespace + name + "/")
	return lower, prefixEnd(lower)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

type writer struct {
	p      *Storage
	name   string
	batch  *pebble.Batch
	buf    []byte
	chunks uint64
	size   uint64
	closed bool
	err    error
}

func (w *writer) Write(b []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("pebble: write %s: writer closed", w.name)
	}
	if w.err != nil {
		return 0, w.err
	}

	n := 0
	for len(b) > 0 {
		k := copy(w.buf[len(w.buf):cap(w.buf)], b)
		w.buf = w.buf[:len(w.buf)+k]
		b = b[k:]
		n += k

		if len(w.buf) == cap(w.buf) {
			if err := w.flushChunk(); err != nil {
				w.err = err
				return n, err
			}
		}
	}
	return n, nil
}

func (w *writer) flushChunk() error {
	if err := w.batch.Set(dataKey(w.name, w.chunks), w.buf, nil); err != nil {
		return err
	}
	w.chunks++
	w.size += uint64(len(w.buf))
	w.buf = w.buf[:0]

	// Commit batch if it gets too large. Chunks are invisible until the
	// manifest is written.
	if w.batch.Len() > maxBatchSize {
		if err := w.batch.Commit(pebble.NoSync); err != nil {
			return err
		}
		w.batch.Close()
		w.batch = w.p.db.NewBatch()
	}
	return nil
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.batch.Close()

	if w.err != nil {
		return w.err
	}
	if len(w.buf) > 0 {
		if err := w.flushChunk(); err != nil {
			return err
		}
	}

	// Chunks left over from a previous blob of the same name.
	_, upper := dataBounds(w.name)
	if err := w.batch.DeleteRange(dataKey(w.name, w.chunks), upper, nil); err != nil {
		return err
	}

	m := Manifest{Chunks: w.chunks, Size: w.size}
	if err := w.batch.Set(manifestKey(w.name), m.encode(), nil); err != nil {
		return err
	}
	return w.batch.Commit(pebble.Sync)
}

type reader struct {
	iter    *pebble.Iterator
	chunk   []byte
	started bool
	closed  bool
}

func (r *reader) Read(b []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("pebble: read after close")
	}
	for len(r.chunk) == 0 {
		var ok bool
		if !r.started {
			ok = r.iter.First()
			r.started = true
		} else {
			ok = r.iter.Next()
		}
		if !ok {
			if err := r.iter.Error(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		r.chunk = r.iter.Value()
	}

	n := copy(b, r.chunk)
	r.chunk = r.chunk[n:]
	return n, nil
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.iter.Close()
}
