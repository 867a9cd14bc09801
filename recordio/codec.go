package recordio

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes values of one type. Decode returns io.EOF, and
// only io.EOF, when r is exhausted before the first byte of a value.
type Codec[T any] interface {
	Encode(w io.Writer, v T) (int64, error)
	Decode(r io.Reader) (T, error)
}

// Int64 encodes int64 values as 8 little-endian bytes.
type Int64 struct{}

func (Int64) Encode(w io.Writer, v int64) (int64, error) {
	return NewBinaryWriter(w).WriteInt64(v)
}

func (Int64) Decode(r io.Reader) (int64, error) {
	return NewBinaryReader(r).ReadInt64()
}

// String encodes strings with a uint64 length prefix.
type String struct{}

func (String) Encode(w io.Writer, v string) (int64, error) {
	return NewBinaryWriter(w).WriteString(v)
}

func (String) Decode(r io.Reader) (string, error) {
	b, err := Bytes{}.Decode(r)
	return string(b), err
}

// Bytes encodes byte slices with a uint64 length prefix.
type Bytes struct{}

func (Bytes) Encode(w io.Writer, v []byte) (int64, error) {
	return NewBinaryWriter(w).WriteBytes(v)
}

func (Bytes) Decode(r io.Reader) ([]byte, error) {
	b, err := NewBinaryReader(r).ReadBytes()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return b, err
}

// RecordCodec encodes Record values in the format of Write.
type RecordCodec struct{}

func (RecordCodec) Encode(w io.Writer, v Record) (int64, error) {
	return Write(w, v)
}

func (RecordCodec) Decode(r io.Reader) (Record, error) {
	return ReadRecord(r)
}

// Msgpack encodes arbitrary values as length-prefixed msgpack documents.
type Msgpack[T any] struct{}

func (Msgpack[T]) Encode(w io.Writer, v T) (int64, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("error encoding msgpack: %w", err)
	}
	return NewBinaryWriter(w).WriteBytes(b)
}

func (Msgpack[T]) Decode(r io.Reader) (T, error) {
	var v T
	b, err := Bytes{}.Decode(r)
	if err != nil {
		return v, err
	}
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("error decoding msgpack: %w", err)
	}
	return v, nil
}
