package stream

import "sync/atomic"

// Statistics are process-wide stream counters.
type Statistics struct {
	StreamsOpened int64
	ItemsWritten  int64
	ItemsRead     int64
	BytesWritten  int64
}

var global struct {
	streamsOpened atomic.Int64
	itemsWritten  atomic.Int64
	itemsRead     atomic.Int64
	bytesWritten  atomic.Int64
}

// Stats returns a snapshot of the counters. BytesWritten counts bytes
// before compression.
func Stats() Statistics {
	return Statistics{
		StreamsOpened: global.streamsOpened.Load(),
		ItemsWritten:  global.itemsWritten.Load(),
		ItemsRead:     global.itemsRead.Load(),
		BytesWritten:  global.bytesWritten.Load(),
	}
}

// ResetStats zeroes the counters.
func ResetStats() {
	global.streamsOpened.Store(0)
	global.itemsWritten.Store(0)
	global.itemsRead.Store(0)
	global.bytesWritten.Store(0)
}
