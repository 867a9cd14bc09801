package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jvahrenhold/tpie/recordio"
	"github.com/pierrec/lz4/v4"
)

// Common errors that can be returned by stream operations.
var (
	ErrStreamClosed       = errors.New("stream: stream already closed")
	ErrCorruptedStream    = errors.New("stream: corrupted stream data")
	ErrUnsupportedVersion = errors.New("stream: unsupported version")
)

var headerSize = int64(binary.Size(magicHeader) + binary.Size(formatVersion) + binary.Size(flagLZ4))

// File format constants.
const (
	magicHeader    = int64(0x5450494553544d31) // "TPIESTM1" in hex
	formatVersion  = int64(1)
	flagLZ4        = int64(1 << 0)
	defaultBufSize = 64 * 1024

	tagEnd  byte = 0x00
	tagItem byte = 0x01
)

// Options configures a stream.
type Options struct {
	// Compress lz4-compresses the stream body. Readers detect compression
	// from the header, so it only matters for writers.
	Compress bool

	// BufferSize is the size of the read/write buffer.
	BufferSize int
}

func (o *Options) bufferSize() int {
	if o == nil || o.BufferSize <= 0 {
		return defaultBufSize
	}
	return o.BufferSize
}

// Sink accepts items.
type Sink[T any] interface {
	Write(item T) error
}

// Writer appends items to a stream.
type Writer[T any] struct {
	wc     io.WriteCloser
	buf    *bufio.Writer
	zw     *lz4.Writer
	body   io.Writer
	codec  recordio.Codec[T]
	count  int64
	closed bool
}

// NewWriter writes a stream header to wc and returns a writer for its
// items. Close must be called to complete the stream.
func NewWriter[T any](wc io.WriteCloser, codec recordio.Codec[T], opts *Options) (*Writer[T], error) {
	if wc == nil {
		return nil, errors.New("stream: WriteCloser cannot be nil")
	}
	if codec == nil {
		return nil, errors.New("stream: codec cannot be nil")
	}

	buf := bufio.NewWriterSize(wc, opts.bufferSize())
	w := &Writer[T]{
		wc:    wc,
		buf:   buf,
		body:  buf,
		codec: codec,
	}

	var flags int64
	if opts != nil && opts.Compress {
		flags |= flagLZ4
	}
	if err := w.writeHeader(flags); err != nil {
		return nil, fmt.Errorf("stream: failed to write header: %w", err)
	}
	if flags&flagLZ4 != 0 {
		w.zw = lz4.NewWriter(buf)
		w.body = w.zw
	}

	global.streamsOpened.Add(1)
	return w, nil
}

func (w *Writer[T]) writeHeader(flags int64) error {
	bw := recordio.NewBinaryWriter(w.buf)
	for _, v := range []int64{magicHeader, formatVersion, flags} {
		if _, err := bw.WriteInt64(v); err != nil {
			return err
		}
	}
	global.bytesWritten.Add(headerSize)
	return nil
}

// Write appends item to the stream.
func (w *Writer[T]) Write(item T) error {
	if w.closed {
		return ErrStreamClosed
	}
	if _, err := w.body.Write([]byte{tagItem}); err != nil {
		return err
	}
	n, err := w.codec.Encode(w.body, item)
	if err != nil {
		return err
	}
	w.count++
	global.itemsWritten.Add(1)
	global.bytesWritten.Add(n + 1)
	return nil
}

// Count returns the number of items written so far.
func (w *Writer[T]) Count() int64 {
	return w.count
}

// Close writes the trailer, flushes and closes the underlying writer.
func (w *Writer[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.writeTrailer()
	return errors.Join(err, w.wc.Close())
}

func (w *Writer[T]) writeTrailer() error {
	if _, err := w.body.Write([]byte{tagEnd}); err != nil {
		return err
	}
	if _, err := recordio.NewBinaryWriter(w.body).WriteInt64(w.count); err != nil {
		return err
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

// Reader pulls items from a stream. It implements merger.Source.
type Reader[T any] struct {
	rc    io.ReadCloser
	codec recordio.Codec[T]
	opts  *Options
	body  io.Reader
	count int64

	head    T
	headErr error
	peeked  bool

	begun, done, ended bool
}

// NewReader returns a reader over rc. Nothing is read until PullBegin.
func NewReader[T any](rc io.ReadCloser, codec recordio.Codec[T], opts *Options) *Reader[T] {
	return &Reader[T]{
		rc:    rc,
		codec: codec,
		opts:  opts,
	}
}

// PullBegin validates the stream header.
func (r *Reader[T]) PullBegin() error {
	if r.begun {
		return nil
	}
	if r.ended {
		return ErrStreamClosed
	}

	buf := bufio.NewReaderSize(r.rc, r.opts.bufferSize())
	flags, err := readHeader(buf)
	if err != nil {
		return err
	}

	r.body = buf
	if flags&flagLZ4 != 0 {
		r.body = lz4.NewReader(buf)
	}
	r.begun = true
	global.streamsOpened.Add(1)
	return nil
}

func readHeader(r io.Reader) (int64, error) {
	br := recordio.NewBinaryReader(r)

	header, err := br.ReadInt64()
	if err != nil {
		return 0, fmt.Errorf("stream: invalid header: %w", err)
	}
	if header != magicHeader {
		return 0, ErrCorruptedStream
	}

	version, err := br.ReadInt64()
	if err != nil {
		return 0, fmt.Errorf("stream: invalid version: %w", err)
	}
	if version != formatVersion {
		return 0, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}

	flags, err := br.ReadInt64()
	if err != nil {
		return 0, fmt.Errorf("stream: invalid flags: %w", err)
	}
	return flags, nil
}

// CanPull reports whether another item (or a read error) is pending. It
// reads ahead one item.
func (r *Reader[T]) CanPull() bool {
	if !r.begun || r.done {
		return false
	}
	if r.peeked {
		return true
	}

	var tag [1]byte
	if _, err := io.ReadFull(r.body, tag[:]); err != nil {
		return r.fail(fmt.Errorf("stream: read tag: %w", truncated(err)))
	}

	switch tag[0] {
	case tagItem:
		v, err := r.codec.Decode(r.body)
		if err != nil {
			return r.fail(fmt.Errorf("stream: read item %d: %w", r.count, truncated(err)))
		}
		r.head = v
		r.peeked = true
		return true
	case tagEnd:
		count, err := recordio.NewBinaryReader(r.body).ReadInt64()
		if err != nil {
			return r.fail(fmt.Errorf("stream: read trailer: %w", truncated(err)))
		}
		if count != r.count {
			return r.fail(fmt.Errorf("%w: trailer counts %d items, read %d", ErrCorruptedStream, count, r.count))
		}
		r.done = true
		return false
	default:
		return r.fail(fmt.Errorf("%w: unknown tag %#x", ErrCorruptedStream, tag[0]))
	}
}

// fail records err to be returned by every later Pull. A broken stream
// stays broken so a retrying caller cannot skip past the damage.
func (r *Reader[T]) fail(err error) bool {
	r.headErr = err
	r.peeked = true
	return true
}

// Pull returns the next item. It panics if CanPull is false. Once a read
// fails, CanPull stays true and Pull keeps returning the same error.
func (r *Reader[T]) Pull() (T, error) {
	if !r.CanPull() {
		panic("stream: pull from exhausted stream")
	}
	if err := r.headErr; err != nil {
		var zero T
		return zero, err
	}
	r.peeked = false

	v := r.head
	var zero T
	r.head = zero
	r.count++
	global.itemsRead.Add(1)
	return v, nil
}

// Count returns the number of items pulled so far.
func (r *Reader[T]) Count() int64 {
	return r.count
}

// PullEnd closes the underlying reader.
func (r *Reader[T]) PullEnd() error {
	if r.ended {
		return nil
	}
	r.ended = true
	r.done = true
	return r.rc.Close()
}

// truncated reports an end of input or an impossible length inside the
// body as a corrupted stream.
func truncated(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrCorruptedStream, io.ErrUnexpectedEOF)
	case errors.Is(err, recordio.ErrInvalidLength):
		return fmt.Errorf("%w: %w", ErrCorruptedStream, err)
	}
	return err
}
