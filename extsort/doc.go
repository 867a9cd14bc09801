// Package extsort sorts item sequences that do not fit in memory.
//
// A sort runs in three phases. Run generation feeds the input through
// replacement selection and writes sorted runs to a storage.Store. While
// there are more runs than the fan-in, merge passes combine groups of runs
// into longer ones, running up to the configured number of merges at once.
// A final merge writes the output, optionally dropping duplicates. Every
// run is removed when the sort ends, whether it succeeded or not.
//
//	s, err := extsort.New(recordio.Int64{}, func(a, b int64) bool { return a < b },
//	    extsort.WithMemory(1<<20),
//	    extsort.WithFanIn(32),
//	    extsort.WithCompression(true),
//	)
//	if err != nil {
//	    return err
//	}
//	res, err := s.Sort(ctx, src, dst)
//
// Options can also be read from a TOML file with LoadConfig:
//
//	memory_items = 1048576
//	fan_in = 32
//	concurrency = 4
//	compress = true
//	backend = "pebble"
//	dir = "/var/tmp/sort"
package extsort
