package merger

import (
	"errors"
	"fmt"
	"iter"
	"reflect"

	"github.com/jvahrenhold/tpie/pq"
)

var (
	ErrNoSources = errors.New("merger: at least one source is required")
	ErrNilSource = errors.New("merger: source cannot be nil")
	ErrNilLess   = errors.New("merger: less function cannot be nil")
)

// Source is a pull sequence. Pull must only be called after CanPull has
// returned true. PullEnd is always called once the consumer is done, even
// when it stops early.
type Source[T any] interface {
	PullBegin() error
	CanPull() bool
	Pull() (T, error)
	PullEnd() error
}

// Input is a source bound to its key function. Inputs are created with
// From.
type Input[K any] interface {
	begin() error
	more() bool
	next() (any, K, error)
	end() error
}

type input[T, K any] struct {
	src Source[T]
	key func(T) K
}

// From binds src to the function extracting its merge key.
func From[T, K any](src Source[T], key func(T) K) Input[K] {
	if isNil(src) || key == nil {
		return nil
	}
	return &input[T, K]{src: src, key: key}
}

// isNil reports whether v is nil or an interface holding a nil pointer, map,
// slice, func or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (in *input[T, K]) begin() error { return in.src.PullBegin() }
func (in *input[T, K]) more() bool   { return in.src.CanPull() }
func (in *input[T, K]) end() error   { return in.src.PullEnd() }

func (in *input[T, K]) next() (any, K, error) {
	v, err := in.src.Pull()
	if err != nil {
		var zero K
		return nil, zero, err
	}
	return v, in.key(v), nil
}

// Item is a merged value tagged with the index of its source.
type Item struct {
	Source int
	value  any
}

// Value returns the untyped value.
func (it Item) Value() any {
	return it.value
}

// Get returns the value of it as a T. It panics if the source of it does
// not produce T.
func Get[T any](it Item) T {
	v, ok := it.value.(T)
	if !ok {
		var want T
		panic(fmt.Sprintf("merger: item from source %d holds %T, not %T", it.Source, it.value, want))
	}
	return v
}

type entry[K any] struct {
	src int
	val any
	key K
}

// Merger merges its inputs by key.
type Merger[K any] struct {
	inputs []Input[K]
	heap   *pq.BoundedHeap[entry[K]]
	seeded []bool
	begun  bool
}

// New creates a merger over inputs ordered by less on their keys.
func New[K any](less func(a, b K) bool, inputs ...Input[K]) (*Merger[K], error) {
	if len(inputs) == 0 {
		return nil, ErrNoSources
	}
	if less == nil {
		return nil, ErrNilLess
	}
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input %d", ErrNilSource, i)
		}
	}

	h, err := pq.NewBoundedHeap(len(inputs), func(a, b entry[K]) bool {
		if less(a.key, b.key) {
			return true
		}
		if less(b.key, a.key) {
			return false
		}
		return a.src < b.src
	})
	if err != nil {
		return nil, err
	}

	return &Merger[K]{
		inputs: inputs,
		heap:   h,
		seeded: make([]bool, len(inputs)),
	}, nil
}

// Len returns the number of inputs.
func (m *Merger[K]) Len() int {
	return len(m.inputs)
}

// PullBegin starts every input and draws the first item of each. Calling it
// again after success is a no-op. After a failure it resumes with the inputs
// that have not yet contributed their first item.
func (m *Merger[K]) PullBegin() error {
	if m.begun {
		return nil
	}
	for _, in := range m.inputs {
		if err := in.begin(); err != nil {
			return err
		}
	}

	for i, in := range m.inputs {
		if m.seeded[i] {
			continue
		}
		if in.more() {
			v, k, err := in.next()
			if err != nil {
				return err
			}
			m.heap.Insert(entry[K]{src: i, val: v, key: k})
		}
		m.seeded[i] = true
	}
	m.begun = true
	return nil
}

// CanPull reports whether any input still has items.
func (m *Merger[K]) CanPull() bool {
	return !m.heap.Empty()
}

// Pull returns the next item in key order and refills from the input it
// came from. If that refill fails the merger is left unchanged and the
// error is returned as is. Calling Pull again retries the refill, so it
// only makes progress if the failing source can recover; stream readers
// keep returning their error.
func (m *Merger[K]) Pull() (Item, error) {
	if m.heap.Empty() {
		panic("merger: pull from exhausted merger")
	}

	top := m.heap.PeekMin()
	if in := m.inputs[top.src]; in.more() {
		v, k, err := in.next()
		if err != nil {
			return Item{}, err
		}
		m.heap.ExtractAndReplace(entry[K]{src: top.src, val: v, key: k})
	} else {
		m.heap.ExtractMin()
	}

	return Item{Source: top.src, value: top.val}, nil
}

// PullEnd ends every input and returns their joined errors.
func (m *Merger[K]) PullEnd() error {
	var errs []error
	for i, in := range m.inputs {
		if err := in.end(); err != nil {
			errs = append(errs, fmt.Errorf("merger: end input %d: %w", i, err))
		}
	}
	m.heap.Reset()
	clear(m.seeded)
	m.begun = false
	return errors.Join(errs...)
}

// All runs a full PullBegin, Pull, PullEnd cycle. A non-nil error is the
// last value yielded.
func (m *Merger[K]) All() iter.Seq2[Item, error] {
	return all(m.PullBegin, m.CanPull, m.Pull, m.PullEnd)
}

func all[T any](begin func() error, more func() bool, pull func() (T, error), end func() error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := begin(); err != nil {
			yield(zero, errors.Join(err, end()))
			return
		}
		for more() {
			v, err := pull()
			if err != nil {
				yield(zero, errors.Join(err, end()))
				return
			}
			if !yield(v, nil) {
				//nolint:errcheck // consumer stopped, nothing to report to.
				end()
				return
			}
		}
		if err := end(); err != nil {
			yield(zero, err)
		}
	}
}
