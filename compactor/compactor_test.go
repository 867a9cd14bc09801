package compactor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jvahrenhold/tpie/compactor"
	"github.com/jvahrenhold/tpie/merger"
	"github.com/jvahrenhold/tpie/recordio"
	"github.com/jvahrenhold/tpie/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intEqual(a, b int) bool { return a == b }

func TestCompact(t *testing.T) {
	tests := []struct {
		name  string
		input []int
		want  []int
	}{
		{name: "empty", input: nil, want: nil},
		{name: "no duplicates", input: []int{1, 2, 3}, want: []int{1, 2, 3}},
		{name: "all equal", input: []int{4, 4, 4}, want: []int{4}},
		{name: "groups", input: []int{1, 1, 2, 3, 3, 3, 4}, want: []int{1, 2, 3, 4}},
		{name: "non adjacent kept", input: []int{1, 2, 1}, want: []int{1, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out stream.SliceSink[int]
			n, err := compactor.Compact[int](&out, merger.NewSliceSource(tt.input...), intEqual)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Items)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestCompactKeepsLast(t *testing.T) {
	type version struct {
		key, rev int
	}
	src := merger.NewSliceSource(version{1, 0}, version{1, 1}, version{2, 0}, version{2, 1}, version{2, 2})

	var out stream.SliceSink[version]
	_, err := compactor.Compact[version](&out, src, func(a, b version) bool { return a.key == b.key })
	require.NoError(t, err)
	assert.Equal(t, []version{{1, 1}, {2, 2}}, out.Items)
}

func TestRecords(t *testing.T) {
	tests := []struct {
		name        string
		sequences   [][]recordio.Record
		wantRecords []recordio.Record
	}{
		{
			name: "Compact across multiple sequences",
			sequences: [][]recordio.Record{
				{
					{Key: "123", Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), Data: []byte{}},
					{Key: "124", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 2, time.UTC), Data: []byte{}},
				},
				{
					{Key: "123", Timestamp: time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC), Data: []byte{}},
				},
			},
			wantRecords: []recordio.Record{
				{Key: "123", Timestamp: time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC), Data: []byte{}},
				{Key: "124", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 2, time.UTC), Data: []byte{}},
			},
		},
		{
			name: "Latest version wins regardless of sequence",
			sequences: [][]recordio.Record{
				{
					{Key: "a", Timestamp: time.Date(2024, 1, 1, 0, 0, 9, 0, time.UTC), Data: []byte("new")},
				},
				{
					{Key: "a", Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), Data: []byte("old")},
					{Key: "b", Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), Data: []byte("only")},
				},
			},
			wantRecords: []recordio.Record{
				{Key: "a", Timestamp: time.Date(2024, 1, 1, 0, 0, 9, 0, time.UTC), Data: []byte("new")},
				{Key: "b", Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), Data: []byte("only")},
			},
		},
		{
			name:        "Empty sequence",
			sequences:   [][]recordio.Record{{}},
			wantRecords: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]merger.Source[recordio.Record], 0, len(tt.sequences))
			for _, seq := range tt.sequences {
				sources = append(sources, merger.NewSliceSource(seq...))
			}

			var out stream.SliceSink[recordio.Record]
			n, err := compactor.Records(&out, sources...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRecords, out.Items)
			assert.Equal(t, int64(len(tt.wantRecords)), n)
		})
	}
}

func TestRecordsHandleNoSequences(t *testing.T) {
	var out stream.SliceSink[recordio.Record]
	n, err := compactor.Records(&out)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

var errWrite = errors.New("its a me, error")

func TestCompactHandleWriteError(t *testing.T) {
	tests := []struct {
		name    string
		failOn  int
		wantErr bool
	}{
		{name: "first group", failOn: 1, wantErr: true},
		{name: "last group", failOn: 3, wantErr: true},
		{name: "never", failOn: 0, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			sink := stream.SinkFunc[int](func(int) error {
				calls++
				if calls == tt.failOn {
					return errWrite
				}
				return nil
			})

			_, err := compactor.Compact[int](sink, merger.NewSliceSource(1, 1, 2, 3, 3), intEqual)
			if tt.wantErr {
				assert.ErrorIs(t, err, errWrite)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 3, calls)
		})
	}
}

type failingSource struct {
	merger.SliceSource[int]
	err error
}

func (f *failingSource) PullBegin() error { return f.err }

func TestCompactHandleBeginError(t *testing.T) {
	errBegin := errors.New("begin")
	_, err := compactor.Compact[int](&stream.SliceSink[int]{}, &failingSource{err: errBegin}, intEqual)
	assert.ErrorIs(t, err, errBegin)
}
