package stream

import (
	"errors"

	"github.com/jvahrenhold/tpie/merger"
)

// Copy pulls every item of src into dst and returns how many were copied.
// src is always ended, even on error.
func Copy[T any](dst Sink[T], src merger.Source[T]) (n int64, err error) {
	if err = src.PullBegin(); err != nil {
		return 0, errors.Join(err, src.PullEnd())
	}
	defer func() {
		err = errors.Join(err, src.PullEnd())
	}()

	for src.CanPull() {
		v, err := src.Pull()
		if err != nil {
			return n, err
		}
		if err := dst.Write(v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SliceSink collects items in memory.
type SliceSink[T any] struct {
	Items []T
}

func (s *SliceSink[T]) Write(item T) error {
	s.Items = append(s.Items, item)
	return nil
}

// SinkFunc adapts a function to a Sink.
type SinkFunc[T any] func(item T) error

func (f SinkFunc[T]) Write(item T) error {
	return f(item)
}
