package extsort

import (
	"github.com/jvahrenhold/tpie/monitoring"
	"github.com/jvahrenhold/tpie/storage"
	"github.com/sirupsen/logrus"
)

// options defines all configuration options for the sorter.
type options struct {
	// Run generation
	memory int // Maximum number of items held in memory

	// Merging
	fanIn       int // Maximum number of runs merged at once
	concurrency int // Maximum number of merges running at once

	// Run storage
	store    storage.Store // Where runs are kept, a temporary directory if nil
	compress bool          // lz4-compress runs

	unique  any // func(a, b T) bool, see WithUnique
	logger  logrus.FieldLogger
	metrics *monitoring.Metrics
}

// Option is a function that configures the sorter options.
type Option func(*options)

// WithMemory sets how many items run generation may hold in memory.
func WithMemory(items int) Option {
	return func(o *options) {
		o.memory = items
	}
}

// WithFanIn sets the maximum number of runs merged by one merge.
func WithFanIn(k int) Option {
	return func(o *options) {
		o.fanIn = k
	}
}

// WithConcurrency sets the maximum number of merges running at once within
// a merge pass.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithStore sets the store that runs are written to.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCompression enables lz4 compression of runs.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithUnique drops duplicates from the output. Of every group of adjacent
// output items for which equal holds, the last in sort order is kept, so
// less should order the versions of an item. T must match the sorter's
// item type.
func WithUnique[T any](equal func(a, b T) bool) Option {
	return func(o *options) {
		o.unique = equal
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics to record to.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		memory:      1 << 20,
		fanIn:       64,
		concurrency: 4,
		logger:      logrus.StandardLogger(),
	}
}
