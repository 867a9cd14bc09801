package merger

import (
	"fmt"
	"iter"
)

// Typed merges sources of one item type. It is itself a Source.
type Typed[T any] struct {
	m *Merger[T]
}

// Of creates a merger over sources ordered by less.
func Of[T any](less func(a, b T) bool, sources ...Source[T]) (*Typed[T], error) {
	inputs := make([]Input[T], len(sources))
	for i, src := range sources {
		if isNil(src) {
			return nil, fmt.Errorf("%w: source %d", ErrNilSource, i)
		}
		inputs[i] = From(src, identity[T])
	}

	m, err := New(less, inputs...)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{m: m}, nil
}

func identity[T any](v T) T { return v }

func (t *Typed[T]) PullBegin() error {
	return t.m.PullBegin()
}

func (t *Typed[T]) CanPull() bool {
	return t.m.CanPull()
}

func (t *Typed[T]) Pull() (T, error) {
	it, err := t.m.Pull()
	if err != nil {
		var zero T
		return zero, err
	}
	return Get[T](it), nil
}

// PullTagged is Pull but keeps the source index.
func (t *Typed[T]) PullTagged() (Item, error) {
	return t.m.Pull()
}

func (t *Typed[T]) PullEnd() error {
	return t.m.PullEnd()
}

// All runs a full PullBegin, Pull, PullEnd cycle.
func (t *Typed[T]) All() iter.Seq2[T, error] {
	return all(t.PullBegin, t.CanPull, t.Pull, t.PullEnd)
}
