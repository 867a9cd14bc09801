package pq

// PushResult reports what OverflowHeap.Push did with its argument.
type PushResult int

const (
	// Stored means the item was kept and nothing was emitted.
	Stored PushResult = iota
	// Replaced means the item was kept and the previous minimum was emitted.
	Replaced
	// Rejected means the item is smaller than every resident item and was
	// not kept. It belongs to the next run.
	Rejected
)

func (r PushResult) String() string {
	switch r {
	case Stored:
		return "stored"
	case Replaced:
		return "replaced"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OverflowHeap generates one sorted run by replacement selection while
// holding at most bound items.
type OverflowHeap[T any] struct {
	heap     *BoundedHeap[T]
	maxSize  int
	bound    int
	emitted  int
	draining bool
}

// NewOverflowHeap creates an overflow heap holding at most bound items.
func NewOverflowHeap[T any](bound int, less func(a, b T) bool) (*OverflowHeap[T], error) {
	h, err := NewBoundedHeap(bound, less)
	if err != nil {
		return nil, err
	}
	return &OverflowHeap[T]{
		heap:    h,
		maxSize: bound,
		bound:   bound,
	}, nil
}

// Push offers x to the run in progress. Once the heap is full, x either
// replaces the minimum, which is returned as the next emitted item, or is
// rejected when it is smaller than every resident item.
func (o *OverflowHeap[T]) Push(x T) (out T, res PushResult) {
	if o.draining {
		panic("pq: push into finalized overflow heap")
	}
	if o.heap.Size() < o.bound {
		o.heap.Insert(x)
		return out, Stored
	}
	if o.heap.less(x, o.heap.PeekMin()) {
		return out, Rejected
	}
	o.emitted++
	return o.heap.ExtractAndReplace(x), Replaced
}

// Top returns the current minimum.
func (o *OverflowHeap[T]) Top() T {
	return o.heap.PeekMin()
}

// Pop removes and emits the current minimum.
func (o *OverflowHeap[T]) Pop() T {
	o.emitted++
	return o.heap.ExtractMin()
}

// Evict emits the current minimum and lowers the bound by one, handing the
// freed slot to the caller. Full stays true across an Evict.
func (o *OverflowHeap[T]) Evict() T {
	if o.draining {
		panic("pq: evict from finalized overflow heap")
	}
	v := o.Pop()
	o.bound--
	return v
}

func (o *OverflowHeap[T]) Size() int {
	return o.heap.Size()
}

func (o *OverflowHeap[T]) Empty() bool {
	return o.heap.Empty()
}

// Full reports whether replacement selection is active, i.e. the resident
// count has reached the current bound.
func (o *OverflowHeap[T]) Full() bool {
	return o.heap.Size() >= o.bound
}

// Emitted returns how many items of the current run were emitted by Push,
// Pop or Evict.
func (o *OverflowHeap[T]) Emitted() int {
	return o.emitted
}

// SortedSize returns the number of items Finalize would return.
func (o *OverflowHeap[T]) SortedSize() int {
	return o.heap.Size()
}

// Finalize drains the remaining items in ascending order. The heap accepts
// no further pushes until Reset.
func (o *OverflowHeap[T]) Finalize() []T {
	o.draining = true
	sorted := make([]T, 0, o.heap.Size())
	for !o.heap.Empty() {
		sorted = append(sorted, o.heap.ExtractMin())
	}
	return sorted
}

// Reset clears all state so the heap can build a new run.
func (o *OverflowHeap[T]) Reset() {
	o.heap.Reset()
	o.bound = o.maxSize
	o.emitted = 0
	o.draining = false
}
