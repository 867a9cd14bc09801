package stream_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jvahrenhold/tpie/merger"
	"github.com/jvahrenhold/tpie/recordio"
	"github.com/jvahrenhold/tpie/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buffer is an in-memory io.WriteCloser.
type buffer struct {
	bytes.Buffer
	closed bool
}

func (b *buffer) Close() error {
	b.closed = true
	return nil
}

func writeInt64s(t *testing.T, opts *stream.Options, values ...int64) []byte {
	t.Helper()

	var buf buffer
	w, err := stream.NewWriter[int64](&buf, recordio.Int64{}, opts)
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, w.Write(v))
	}
	assert.Equal(t, int64(len(values)), w.Count())
	require.NoError(t, w.Close())
	assert.True(t, buf.closed)
	return buf.Bytes()
}

func readInt64s(data []byte) ([]int64, error) {
	r := stream.NewReader[int64](io.NopCloser(bytes.NewReader(data)), recordio.Int64{}, nil)
	return merger.Collect[int64](r)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		opts   *stream.Options
		values []int64
	}{
		{
			name:   "nil options",
			values: []int64{3, 1, 2},
		},
		{
			name:   "compressed",
			opts:   &stream.Options{Compress: true},
			values: []int64{-5, 0, 5, 1 << 40},
		},
		{
			name: "empty",
		},
		{
			name: "empty compressed",
			opts: &stream.Options{Compress: true},
		},
		{
			name:   "small buffer",
			opts:   &stream.Options{BufferSize: 16},
			values: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := writeInt64s(t, tt.opts, tt.values...)

			got, err := readInt64s(data)
			require.NoError(t, err)
			assert.Equal(t, tt.values, got)
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	values := make([]int64, 10000)
	plain := writeInt64s(t, nil, values...)
	packed := writeInt64s(t, &stream.Options{Compress: true}, values...)
	assert.Less(t, len(packed), len(plain)/4)

	got, err := readInt64s(packed)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestRecordsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.stm")
	f, err := os.Create(path)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	want := []recordio.Record{
		{Key: "a", Timestamp: now, Data: []byte("one")},
		{Key: "b", Timestamp: now.Add(time.Second), Data: []byte("two")},
		{Key: "c", Timestamp: now.Add(2 * time.Second), Data: []byte{}},
	}

	w, err := stream.NewWriter[recordio.Record](f, recordio.RecordCodec{}, &stream.Options{Compress: true})
	require.NoError(t, err)
	for _, rec := range want {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	got, err := merger.Collect[recordio.Record](stream.NewReader[recordio.Record](f, recordio.RecordCodec{}, nil))
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key, got[i].Key)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, want[i].Data, got[i].Data)
	}
}

func TestCorruptedStreams(t *testing.T) {
	valid := writeInt64s(t, nil, 1, 2, 3)
	const header = 24

	badCount := bytes.Clone(valid)
	badCount[len(badCount)-8] = 9

	badTag := bytes.Clone(valid)
	badTag[header] = 7

	tests := []struct {
		name    string
		data    []byte
		want    []int64
		wantErr error
	}{
		{
			name:    "bad magic",
			data:    append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, valid[8:]...),
			wantErr: stream.ErrCorruptedStream,
		},
		{
			name:    "truncated header",
			data:    valid[:12],
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "truncated before trailer",
			data:    valid[:header+3*9],
			want:    []int64{1, 2, 3},
			wantErr: stream.ErrCorruptedStream,
		},
		{
			name:    "truncated trailer",
			data:    valid[:len(valid)-4],
			want:    []int64{1, 2, 3},
			wantErr: stream.ErrCorruptedStream,
		},
		{
			name:    "truncated item",
			data:    valid[:header+9+4],
			want:    []int64{1},
			wantErr: stream.ErrCorruptedStream,
		},
		{
			name:    "trailer count mismatch",
			data:    badCount,
			want:    []int64{1, 2, 3},
			wantErr: stream.ErrCorruptedStream,
		},
		{
			name:    "unknown tag",
			data:    badTag,
			wantErr: stream.ErrCorruptedStream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInt64s(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}

	lengths := []struct {
		name   string
		length uint64
	}{
		{name: "huge length prefix", length: 1 << 62},
		{name: "length beyond int64", length: 1<<63 + 5},
		{name: "length past end of body", length: 1 << 20},
	}
	for _, tt := range lengths {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Clone(valid[:header])
			data = append(data, 1)
			data = binary.LittleEndian.AppendUint64(data, tt.length)
			data = append(data, "abc"...)

			r := stream.NewReader[string](io.NopCloser(bytes.NewReader(data)), recordio.String{}, nil)
			got, err := merger.Collect[string](r)
			assert.ErrorIs(t, err, stream.ErrCorruptedStream)
			assert.Empty(t, got)
		})
	}
}

func TestReaderErrorIsSticky(t *testing.T) {
	data := writeInt64s(t, nil, 1, 2, 3)
	r := stream.NewReader[int64](io.NopCloser(bytes.NewReader(data[:24+9+4])), recordio.Int64{}, nil)
	require.NoError(t, r.PullBegin())

	v, err := r.Pull()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	for i := 0; i < 3; i++ {
		require.True(t, r.CanPull())
		_, err = r.Pull()
		assert.ErrorIs(t, err, stream.ErrCorruptedStream)
	}
	assert.Equal(t, int64(1), r.Count())
	require.NoError(t, r.PullEnd())
}

func TestMergeRetryDoesNotSkipBrokenRun(t *testing.T) {
	broken := writeInt64s(t, nil, 1, 3, 5)
	broken = broken[:24+9+4]
	whole := writeInt64s(t, nil, 2, 4)

	m, err := merger.Of(func(a, b int64) bool { return a < b },
		stream.NewReader[int64](io.NopCloser(bytes.NewReader(broken)), recordio.Int64{}, nil),
		stream.NewReader[int64](io.NopCloser(bytes.NewReader(whole)), recordio.Int64{}, nil),
	)
	require.NoError(t, err)
	require.NoError(t, m.PullBegin())

	// 1 is held until its run can be refilled, which never succeeds.
	for i := 0; i < 3; i++ {
		require.True(t, m.CanPull())
		_, err = m.Pull()
		assert.ErrorIs(t, err, stream.ErrCorruptedStream)
	}
	require.NoError(t, m.PullEnd())
}

func TestUnsupportedVersion(t *testing.T) {
	data := writeInt64s(t, nil, 1)
	data[8] = 2

	_, err := readInt64s(data)
	assert.ErrorIs(t, err, stream.ErrUnsupportedVersion)
}

func TestWriteAfterClose(t *testing.T) {
	var buf buffer
	w, err := stream.NewWriter[int64](&buf, recordio.Int64{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Write(1), stream.ErrStreamClosed)
}

func TestNewWriterErrors(t *testing.T) {
	_, err := stream.NewWriter[int64](nil, recordio.Int64{}, nil)
	assert.Error(t, err)

	_, err = stream.NewWriter[int64](&buffer{}, nil, nil)
	assert.Error(t, err)
}

type failingCloser struct {
	buffer
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestCloseReportsUnderlyingError(t *testing.T) {
	errClose := errors.New("its a me, close error")
	w, err := stream.NewWriter[int64](&failingCloser{err: errClose}, recordio.Int64{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(1))

	assert.ErrorIs(t, w.Close(), errClose)
}

func TestReaderContract(t *testing.T) {
	data := writeInt64s(t, nil, 4, 5)
	r := stream.NewReader[int64](io.NopCloser(bytes.NewReader(data)), recordio.Int64{}, nil)

	assert.False(t, r.CanPull(), "nothing is readable before PullBegin")
	require.NoError(t, r.PullBegin())
	require.NoError(t, r.PullBegin())

	assert.True(t, r.CanPull())
	assert.True(t, r.CanPull())
	v, err := r.Pull()
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	v, err = r.Pull()
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
	assert.Equal(t, int64(2), r.Count())

	assert.False(t, r.CanPull())
	assert.Panics(t, func() { r.Pull() })

	require.NoError(t, r.PullEnd())
	require.NoError(t, r.PullEnd())
	assert.ErrorIs(t, r.PullBegin(), stream.ErrStreamClosed)
}

func TestMergeStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var sources []merger.Source[int64]
	var total int
	for i := 0; i < 5; i++ {
		n := rng.Intn(50)
		values := make([]int64, n)
		for j := range values {
			values[j] = int64(j*5 + i)
		}
		total += n
		data := writeInt64s(t, &stream.Options{Compress: i%2 == 0}, values...)
		sources = append(sources, stream.NewReader[int64](io.NopCloser(bytes.NewReader(data)), recordio.Int64{}, nil))
	}

	m, err := merger.Of(func(a, b int64) bool { return a < b }, sources...)
	require.NoError(t, err)

	var sink stream.SliceSink[int64]
	n, err := stream.Copy[int64](&sink, m)
	require.NoError(t, err)
	assert.Equal(t, int64(total), n)
	assert.IsNonDecreasing(t, sink.Items)
}

func TestCopyStopsOnSinkError(t *testing.T) {
	errSink := errors.New("sink full")
	sink := stream.SinkFunc[int](func(v int) error {
		if v == 3 {
			return errSink
		}
		return nil
	})

	n, err := stream.Copy[int](sink, merger.NewSliceSource(1, 2, 3, 4))
	assert.ErrorIs(t, err, errSink)
	assert.Equal(t, int64(2), n)
}

func TestStats(t *testing.T) {
	stream.ResetStats()

	data := writeInt64s(t, nil, 1, 2, 3)
	_, err := readInt64s(data)
	require.NoError(t, err)

	assert.Equal(t, stream.Statistics{
		StreamsOpened: 2,
		ItemsWritten:  3,
		ItemsRead:     3,
		BytesWritten:  24 + 3*9,
	}, stream.Stats())

	stream.ResetStats()
	assert.Equal(t, stream.Statistics{}, stream.Stats())
}
