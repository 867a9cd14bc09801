package pq

import "errors"

var (
	ErrInvalidCapacity = errors.New("pq: capacity must be greater than 0")
	ErrNilLess         = errors.New("pq: less function cannot be nil")
)

// BoundedHeap is a fixed-capacity binary min-heap ordered by less.
type BoundedHeap[T any] struct {
	items []T
	sz    int
	less  func(a, b T) bool // returns true if a must come out before b
}

// NewBoundedHeap creates a heap able to hold capacity items.
func NewBoundedHeap[T any](capacity int, less func(a, b T) bool) (*BoundedHeap[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if less == nil {
		return nil, ErrNilLess
	}
	return &BoundedHeap[T]{
		items: make([]T, capacity),
		less:  less,
	}, nil
}

// Size returns the number of resident items.
func (h *BoundedHeap[T]) Size() int {
	return h.sz
}

// Cap returns the fixed capacity.
func (h *BoundedHeap[T]) Cap() int {
	return len(h.items)
}

func (h *BoundedHeap[T]) Empty() bool {
	return h.sz == 0
}

func (h *BoundedHeap[T]) Full() bool {
	return h.sz == len(h.items)
}

// Insert adds x to the heap. It panics if the heap is full.
func (h *BoundedHeap[T]) Insert(x T) {
	if h.sz == len(h.items) {
		panic("pq: insert into full heap")
	}
	h.items[h.sz] = x
	h.sz++
	h.up(h.sz - 1)
}

// ExtractMin removes and returns the minimum. It panics if the heap is empty.
func (h *BoundedHeap[T]) ExtractMin() T {
	if h.sz == 0 {
		panic("pq: extract from empty heap")
	}
	h.sz--
	h.items[0], h.items[h.sz] = h.items[h.sz], h.items[0]
	h.down()

	var zero T
	top := h.items[h.sz]
	h.items[h.sz] = zero
	return top
}

// ExtractAndReplace returns the minimum and puts x in its place using a
// single downward sift. The size of the heap is unchanged.
func (h *BoundedHeap[T]) ExtractAndReplace(x T) T {
	if h.sz == 0 {
		panic("pq: replace on empty heap")
	}
	top := h.items[0]
	h.items[0] = x
	h.down()
	return top
}

// PeekMin returns the minimum without removing it.
func (h *BoundedHeap[T]) PeekMin() T {
	if h.sz == 0 {
		panic("pq: peek on empty heap")
	}
	return h.items[0]
}

// Reset drops all resident items.
func (h *BoundedHeap[T]) Reset() {
	clear(h.items[:h.sz])
	h.sz = 0
}

// up moves the element at index k up to its proper position.
func (h *BoundedHeap[T]) up(k int) {
	for k > 0 {
		parent := (k - 1) / 2
		if !h.less(h.items[k], h.items[parent]) {
			break
		}
		h.items[k], h.items[parent] = h.items[parent], h.items[k]
		k = parent
	}
}

// down moves the root down to its proper position.
func (h *BoundedHeap[T]) down() {
	k := 0
	for {
		j := 2*k + 1
		if j >= h.sz {
			break
		}
		if right := j + 1; right < h.sz && h.less(h.items[right], h.items[j]) {
			j = right
		}
		if !h.less(h.items[j], h.items[k]) {
			break
		}
		h.items[k], h.items[j] = h.items[j], h.items[k]
		k = j
	}
}
