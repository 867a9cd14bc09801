// Package compactor removes duplicates from sorted sequences while they are
// streamed, keeping the last item of every group of equal items.
//
// Combined with a stable merge this keeps the version from the run with
// the highest index, and for records sorted by key and timestamp it keeps
// the most recent version of each key:
//
//	older := merger.NewSliceSource(
//	    recordio.Record{Key: "1", Timestamp: t0, Data: []byte("v1")},
//	    recordio.Record{Key: "2", Timestamp: t0, Data: []byte("v2")},
//	)
//	newer := merger.NewSliceSource(
//	    recordio.Record{Key: "1", Timestamp: t1, Data: []byte("v3")},
//	)
//
//	var out stream.SliceSink[recordio.Record]
//	n, err := compactor.Records(&out, older, newer)
//
// Memory use is constant regardless of input size.
package compactor
