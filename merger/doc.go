// Package merger implements a k-way merge of independently pulled sources
// into one ordered pull sequence, using a heap holding at most one entry per
// source.
//
// Sources may carry different item types. Each source is bound to a key
// function with From, and every merged Item is tagged with the index of the
// source it came from, so the caller can recover the typed value with Get:
//
//	ids := merger.NewSliceSource(1, 4, 7)
//	names := merger.NewSliceSource("2:bob", "5:eve")
//
//	m, err := merger.New(
//	    func(a, b int) bool { return a < b },
//	    merger.From(ids, func(v int) int { return v }),
//	    merger.From(names, func(s string) int { n, _ := strconv.Atoi(s[:1]); return n }),
//	)
//
//	for it, err := range m.All() {
//	    switch it.Source {
//	    case 0:
//	        fmt.Println(merger.Get[int](it))
//	    case 1:
//	        fmt.Println(merger.Get[string](it))
//	    }
//	}
//
// The merge is stable: items with equal keys come out in ascending source
// index order, and items from one source keep their relative order.
//
// For sources sharing one item type, Of builds a Typed merger whose Pull
// returns the items directly. A Typed merger is itself a Source, so merges
// can be nested.
//
// Mergers are single-threaded. A merger borrows its sources: PullEnd is
// propagated to them, but they are never closed in any other way.
package merger
