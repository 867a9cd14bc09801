package compactor

import (
	"errors"
	"fmt"

	"github.com/jvahrenhold/tpie/merger"
	"github.com/jvahrenhold/tpie/recordio"
	"github.com/jvahrenhold/tpie/stream"
)

// Compact copies src to dst, collapsing each group of consecutive items
// for which equal holds into the last item of the group. It returns the
// number of items written. src is always ended.
func Compact[T any](dst stream.Sink[T], src merger.Source[T], equal func(a, b T) bool) (n int64, err error) {
	if err = src.PullBegin(); err != nil {
		return 0, errors.Join(err, src.PullEnd())
	}
	defer func() {
		err = errors.Join(err, src.PullEnd())
	}()

	var (
		last T
		held bool
	)
	for src.CanPull() {
		current, err := src.Pull()
		if err != nil {
			return n, err
		}
		if held && !equal(last, current) {
			if err := dst.Write(last); err != nil {
				return n, fmt.Errorf("compactor: write: %w", err)
			}
			n++
		}
		last = current
		held = true
	}

	if held {
		if err := dst.Write(last); err != nil {
			return n, fmt.Errorf("compactor: write: %w", err)
		}
		n++
	}
	return n, nil
}

// Records merges sorted record sequences into dst keeping only the latest
// version of each key.
func Records(dst stream.Sink[recordio.Record], sources ...merger.Source[recordio.Record]) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	m, err := merger.Of(recordio.Record.Less, sources...)
	if err != nil {
		return 0, fmt.Errorf("compactor: %w", err)
	}
	return Compact[recordio.Record](dst, m, sameKey)
}

func sameKey(a, b recordio.Record) bool {
	return a.Key == b.Key
}
