// Package recordio implements the binary encodings used for items in run
// streams. It provides length-prefixed field helpers, a Record type with
// magic bytes for format validation, and Codec implementations for the
// item types the sorter handles out of the box.
//
// Basic usage:
//
//	// Writing a record
//	record := recordio.Record{
//	    Key:       "record1",
//	    Timestamp: time.Now(),
//	    Data:      []byte("Hello, World!"),
//	}
//
//	var buf bytes.Buffer
//	n, err := recordio.Write(&buf, record)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Reading it back through a codec
//	var codec recordio.Codec[recordio.Record] = recordio.RecordCodec{}
//	got, err := codec.Decode(&buf)
//
//	// Calculate record size
//	size := recordio.Size(record)
//
// Any msgpack-serialisable type can be stored with Msgpack:
//
//	var codec recordio.Codec[Event] = recordio.Msgpack[Event]{}
package recordio
