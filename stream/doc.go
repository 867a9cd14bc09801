// Package stream implements disk-backed item streams: a Writer that appends
// encoded items to an io.WriteCloser, and a Reader that pulls them back one
// at a time through the merger.Source contract.
//
// A stream starts with an uncompressed header (magic, format version and
// flags) followed by the body. Every item in the body is preceded by a tag
// byte, and the body ends with an end tag and the number of items written,
// so a truncated stream is detected instead of being read as a short one.
// The body may be lz4 compressed.
//
//	w, err := stream.NewWriter(file, recordio.Int64{}, &stream.Options{Compress: true})
//	for _, v := range values {
//	    if err := w.Write(v); err != nil {
//	        return err
//	    }
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
//
//	r := stream.NewReader(file, recordio.Int64{}, nil)
//	items, err := merger.Collect[int64](r)
//
// Process-wide counters of streams opened and items moved are kept for
// diagnostics; see Stats and ResetStats.
package stream
