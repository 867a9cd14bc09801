// Package monitoring holds the logging and metrics plumbing shared by the
// sort driver, the run generator and the command line tool.
package monitoring

import (
	"github.com/jvahrenhold/tpie/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of external sorts. A nil *Metrics records nothing.
type Metrics struct {
	ItemsPushed  prometheus.Counter
	ItemsMerged  prometheus.Counter
	RunsCreated  prometheus.Counter
	RunLength    prometheus.Histogram
	MergePasses  prometheus.Counter
	SortDuration *prometheus.HistogramVec
}

// NewMetrics registers the sort metrics and the process-wide stream
// counters with reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ItemsPushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_pushed_total",
			Help:      "Total number of items fed to run generation",
		}),
		ItemsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_merged_total",
			Help:      "Total number of items written by merges",
		}),
		RunsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_created_total",
			Help:      "Total number of sorted runs written",
		}),
		RunLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_length_items",
			Help:      "Number of items per sorted run",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		}),
		MergePasses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_passes_total",
			Help:      "Total number of merge passes, the final merge included",
		}),
		SortDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sort_duration_seconds",
			Help:      "Duration of complete sorts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}), // status: success/error
	}

	streamCounter := func(name, help string, value func(stream.Statistics) int64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(stream.Stats()))
		})
	}
	streamCounter("opened_total", "Streams opened for reading or writing",
		func(s stream.Statistics) int64 { return s.StreamsOpened })
	streamCounter("items_written_total", "Items written to streams",
		func(s stream.Statistics) int64 { return s.ItemsWritten })
	streamCounter("items_read_total", "Items read from streams",
		func(s stream.Statistics) int64 { return s.ItemsRead })
	streamCounter("bytes_written_total", "Uncompressed bytes written to streams",
		func(s stream.Statistics) int64 { return s.BytesWritten })

	return m
}

func (m *Metrics) ItemPushed() {
	if m == nil {
		return
	}
	m.ItemsPushed.Inc()
}

func (m *Metrics) Merged(n int64) {
	if m == nil {
		return
	}
	m.ItemsMerged.Add(float64(n))
}

func (m *Metrics) RunCreated(length int64) {
	if m == nil {
		return
	}
	m.RunsCreated.Inc()
	m.RunLength.Observe(float64(length))
}

func (m *Metrics) MergePass() {
	if m == nil {
		return
	}
	m.MergePasses.Inc()
}

func (m *Metrics) SortDone(seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SortDuration.WithLabelValues(status).Observe(seconds)
}
