package merger

import (
	"errors"
	"iter"
)

// SliceSource pulls from an in-memory slice.
type SliceSource[T any] struct {
	items []T
	pos   int
}

func NewSliceSource[T any](items ...T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

func (s *SliceSource[T]) PullBegin() error { return nil }
func (s *SliceSource[T]) PullEnd() error   { return nil }

func (s *SliceSource[T]) CanPull() bool {
	return s.pos < len(s.items)
}

func (s *SliceSource[T]) Pull() (T, error) {
	if !s.CanPull() {
		panic("merger: pull from exhausted slice source")
	}
	v := s.items[s.pos]
	s.pos++
	return v, nil
}

// SeqSource pulls from an iterator. The iterator is started by PullBegin
// and stopped by PullEnd.
type SeqSource[T any] struct {
	seq    iter.Seq[T]
	next   func() (T, bool)
	stop   func()
	head   T
	ok     bool
	peeked bool
}

func FromSeq[T any](seq iter.Seq[T]) *SeqSource[T] {
	return &SeqSource[T]{seq: seq}
}

func (s *SeqSource[T]) PullBegin() error {
	if s.next == nil {
		s.next, s.stop = iter.Pull(s.seq)
	}
	return nil
}

func (s *SeqSource[T]) CanPull() bool {
	if s.next == nil {
		return false
	}
	if !s.peeked {
		s.head, s.ok = s.next()
		s.peeked = true
	}
	return s.ok
}

func (s *SeqSource[T]) Pull() (T, error) {
	if !s.CanPull() {
		panic("merger: pull from exhausted iterator source")
	}
	s.peeked = false
	return s.head, nil
}

func (s *SeqSource[T]) PullEnd() error {
	if s.stop != nil {
		s.stop()
	}
	return nil
}

// Collect pulls every item of src.
func Collect[T any](src Source[T]) (items []T, err error) {
	if err = src.PullBegin(); err != nil {
		return nil, errors.Join(err, src.PullEnd())
	}
	defer func() {
		err = errors.Join(err, src.PullEnd())
	}()

	for src.CanPull() {
		v, pullErr := src.Pull()
		if pullErr != nil {
			return items, pullErr
		}
		items = append(items, v)
	}
	return items, nil
}
