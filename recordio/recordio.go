package recordio

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

var (
	Uint64Size = int64(binary.Size(uint64(0)))
	Int64Size  = int64(binary.Size(int64(0)))
	// MagicBytes Magic bytes to identify a valid record (REC).
	MagicBytes           = []byte{0x52, 0x45, 0x43}
	ErrInvalidMagicBytes = errors.New("invalid magic bytes - not a valid record")
	ErrInvalidLength     = errors.New("invalid length prefix")
)

const maxPrealloc = 1 << 16

// BinaryWriter handles writing binary data with error handling.
type BinaryWriter struct {
	w io.Writer
}

func NewBinaryWriter(w io.Writer) BinaryWriter {
	return BinaryWriter{w: w}
}

func (bw BinaryWriter) WriteString(s string) (int64, error) {
	if err := binary.Write(bw.w, binary.LittleEndian, uint64(len(s))); err != nil {
		return 0, fmt.Errorf("error writing string length: %w", err)
	}

	n, err := io.WriteString(bw.w, s)
	if err != nil {
		return Uint64Size, fmt.Errorf("error writing string content: %w", err)
	}

	return Uint64Size + int64(n), nil
}

func (bw BinaryWriter) WriteInt64(i int64) (int64, error) {
	err := binary.Write(bw.w, binary.LittleEndian, i)
	if err != nil {
		return 0, err
	}
	return Int64Size, nil
}

func (bw BinaryWriter) WriteBytes(b []byte) (int64, error) {
	if err := binary.Write(bw.w, binary.LittleEndian, uint64(len(b))); err != nil {
		return 0, fmt.Errorf("error writing bytes length: %w", err)
	}

	n, err := bw.w.Write(b)
	if err != nil {
		return Uint64Size, fmt.Errorf("error writing bytes content: %w", err)
	}

	return Uint64Size + int64(n), nil
}

// BinaryReader handles reading binary data with error handling.
type BinaryReader struct {
	r io.Reader
}

func NewBinaryReader(r io.Reader) BinaryReader {
	return BinaryReader{r: r}
}

func (br BinaryReader) ReadString() (string, error) {
	b, err := br.readSized("string")
	return string(b), err
}

func (br BinaryReader) ReadInt64() (int64, error) {
	var value int64
	err := binary.Read(br.r, binary.LittleEndian, &value)
	return value, err
}

func (br BinaryReader) ReadBytes() ([]byte, error) {
	return br.readSized("bytes")
}

func (br BinaryReader) readSized(what string) ([]byte, error) {
	var length uint64
	if err := binary.Read(br.r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("error reading %s length: %w", what, err)
	}

	if length > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %s of %d bytes", ErrInvalidLength, what, length)
	}

	// Small fields are read in one go. Larger ones grow with the data
	// actually present, so a corrupted length fails with a short read.
	if length <= maxPrealloc {
		b := make([]byte, length)
		if _, err := io.ReadFull(br.r, b); err != nil {
			return nil, fmt.Errorf("error reading %s content: %w", what, unexpected(err))
		}
		return b, nil
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, br.r, int64(length)); err != nil {
		return nil, fmt.Errorf("error reading %s content: %w", what, unexpected(err))
	}
	return buf.Bytes(), nil
}

// Record is a keyed, timestamped payload.
type Record struct {
	Key       string
	Timestamp time.Time
	Data      []byte
}

// Less orders records by key, then by timestamp.
func (r Record) Less(o Record) bool {
	if c := cmp.Compare(r.Key, o.Key); c != 0 {
		return c < 0
	}
	return r.Timestamp.Before(o.Timestamp)
}

// Write writes a single record to the writer.
func Write(w io.Writer, data Record) (int64, error) {
	var (
		totalBytes int64
		n          int64
	)

	mn, err := w.Write(MagicBytes)
	if err != nil {
		return int64(mn), fmt.Errorf("failed to write magic bytes: %w", err)
	}
	totalBytes += int64(mn)

	bw := NewBinaryWriter(w)

	n, err = bw.WriteString(data.Key)
	if err != nil {
		return totalBytes, fmt.Errorf("error writing key: %w", err)
	}
	totalBytes += n

	n, err = bw.WriteInt64(data.Timestamp.UnixNano())
	if err != nil {
		return totalBytes, fmt.Errorf("error writing timestamp: %w", err)
	}
	totalBytes += n

	n, err = bw.WriteString(data.Timestamp.Location().String())
	if err != nil {
		return totalBytes, fmt.Errorf("error writing timezone: %w", err)
	}
	totalBytes += n

	n, err = bw.WriteBytes(data.Data)
	if err != nil {
		return totalBytes, fmt.Errorf("error writing data: %w", err)
	}
	totalBytes += n

	return totalBytes, nil
}

// ReadRecord reads a single record from the reader. A clean end of input
// is reported as io.EOF.
func ReadRecord(r io.Reader) (Record, error) {
	magicBytes := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r, magicBytes); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if !bytes.Equal(magicBytes, MagicBytes) {
		return Record{}, ErrInvalidMagicBytes
	}

	br := NewBinaryReader(r)

	key, err := br.ReadString()
	if err != nil {
		return Record{}, fmt.Errorf("error reading key: %w", unexpected(err))
	}

	unixNano, err := br.ReadInt64()
	if err != nil {
		return Record{}, fmt.Errorf("error reading timestamp: %w", unexpected(err))
	}

	timezone, err := br.ReadString()
	if err != nil {
		return Record{}, fmt.Errorf("error reading timezone: %w", unexpected(err))
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	data, err := br.ReadBytes()
	if err != nil {
		return Record{}, fmt.Errorf("error reading data: %w", unexpected(err))
	}

	return Record{
		Key:       key,
		Timestamp: time.Unix(0, unixNano).In(loc),
		Data:      data,
	}, nil
}

// unexpected turns io.EOF into io.ErrUnexpectedEOF for reads that started
// a value.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Size calculates the total size in bytes that a record will occupy when written.
// This includes magic bytes, all fields and their length prefixes.
func Size(record Record) int64 {
	var totalSize int64

	totalSize += int64(len(MagicBytes))

	// Key: length prefix + content
	totalSize += Uint64Size + int64(len(record.Key))

	// Timestamp: int64 for UnixNano
	totalSize += Int64Size

	// Timezone: length prefix + content
	totalSize += Uint64Size + int64(len(record.Timestamp.Location().String()))

	// Data: length prefix + content
	totalSize += Uint64Size + int64(len(record.Data))

	return totalSize
}
