// Package pq implements the memory-bounded priority structures used to
// form sorted runs: a fixed-capacity binary heap and an overflow heap that
// performs replacement selection on top of it.
//
// BoundedHeap is a plain array-backed binary min-heap. Its capacity is fixed
// when it is created and never grows; inserting into a full heap or
// extracting from an empty one is a programming error and panics.
//
// OverflowHeap accepts an unbounded stream of pushes while keeping at most M
// items resident. Once M items are held, each push either replaces the
// current minimum (which is emitted as the next item of the run) or is
// rejected because it is smaller than everything resident and therefore
// belongs to the next run:
//
//	oh, _ := pq.NewOverflowHeap(3, func(a, b int) bool { return a < b })
//	for _, v := range []int{5, 1, 4, 2, 8, 9} {
//	    if out, res := oh.Push(v); res == pq.Replaced {
//	        fmt.Println(out) // 1, 2, 4
//	    }
//	}
//	fmt.Println(oh.Finalize()) // [5 8 9]
//
// Neither type is safe for concurrent use.
package pq
