// Package runs turns an unsorted item sequence into sorted runs by
// replacement selection over a pq.OverflowHeap.
//
// Items smaller than the run in progress are held in a next-run buffer.
// Each held item costs the heap one slot, so heap and buffer together never
// hold more than the configured bound. When the heap runs dry the run is
// closed and the buffer becomes the heap of the next run. On random input
// runs average about twice the bound.
package runs

import (
	"errors"
	"fmt"

	"github.com/jvahrenhold/tpie/monitoring"
	"github.com/jvahrenhold/tpie/pq"
	"github.com/jvahrenhold/tpie/stream"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed     = errors.New("runs: generator closed")
	ErrNilFactory = errors.New("runs: run factory cannot be nil")
)

// RunWriter receives the items of one run.
type RunWriter[T any] interface {
	stream.Sink[T]
	Close() error
}

// RunFactory opens the writer for the run with the given index and
// returns its name.
type RunFactory[T any] func(index int) (name string, w RunWriter[T], err error)

// Run describes a completed run.
type Run struct {
	Index  int
	Name   string
	Length int64
}

// Option configures a Generator.
type Option func(*options)

type options struct {
	logger  logrus.FieldLogger
	metrics *monitoring.Metrics
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Generator writes pushed items as sorted runs.
type Generator[T any] struct {
	heap    *pq.OverflowHeap[T]
	pending []T
	create  RunFactory[T]
	logger  logrus.FieldLogger
	metrics *monitoring.Metrics

	cur    RunWriter[T]
	run    Run
	runs   []Run
	err    error
	closed bool
}

// New creates a generator holding at most bound items in memory.
func New[T any](bound int, less func(a, b T) bool, create RunFactory[T], opts ...Option) (*Generator[T], error) {
	if create == nil {
		return nil, ErrNilFactory
	}
	h, err := pq.NewOverflowHeap(bound, less)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Generator[T]{
		heap:    h,
		pending: make([]T, 0, bound),
		create:  create,
		logger:  monitoring.WithComponent(o.logger, "runs"),
		metrics: o.metrics,
	}, nil
}

// Push adds x to the runs. After an error every further call fails.
func (g *Generator[T]) Push(x T) error {
	if g.closed {
		return ErrClosed
	}
	if g.err != nil {
		return g.err
	}
	g.metrics.ItemPushed()

	out, res := g.heap.Push(x)
	switch res {
	case pq.Replaced:
		g.err = g.emit(out)
	case pq.Rejected:
		g.pending = append(g.pending, x)
		g.err = g.evict()
	}
	return g.err
}

// Write is Push, so a Generator can be the target of stream.Copy.
func (g *Generator[T]) Write(x T) error {
	return g.Push(x)
}

// evict makes room for the last held item and starts the next run when
// the current one has nothing left.
func (g *Generator[T]) evict() error {
	if err := g.emit(g.heap.Evict()); err != nil {
		return err
	}
	if !g.heap.Empty() {
		return nil
	}

	if err := g.closeRun(); err != nil {
		return err
	}
	g.refill()
	return nil
}

// refill moves the held items into the reset heap.
func (g *Generator[T]) refill() {
	g.heap.Reset()
	for _, v := range g.pending {
		if _, res := g.heap.Push(v); res != pq.Stored {
			panic("runs: held items exceed the heap bound")
		}
	}
	clear(g.pending)
	g.pending = g.pending[:0]
}

func (g *Generator[T]) emit(v T) error {
	if g.cur == nil {
		name, w, err := g.create(len(g.runs))
		if err != nil {
			return fmt.Errorf("runs: create run %d: %w", len(g.runs), err)
		}
		g.cur = w
		g.run = Run{Index: len(g.runs), Name: name}
	}
	if err := g.cur.Write(v); err != nil {
		return err
	}
	g.run.Length++
	return nil
}

func (g *Generator[T]) closeRun() error {
	if g.cur == nil {
		return nil
	}
	err := g.cur.Close()
	g.cur = nil
	g.runs = append(g.runs, g.run)
	if err != nil {
		return fmt.Errorf("runs: close run %s: %w", g.run.Name, err)
	}

	g.metrics.RunCreated(g.run.Length)
	g.logger.WithField("action", "run_created").
		WithField("run", g.run.Name).
		WithField("length", g.run.Length).
		Debug("sorted run written")
	return nil
}

// Close flushes the heap and the held items and returns every run
// written, in order. Runs are returned even on error so that the caller
// can remove them.
func (g *Generator[T]) Close() ([]Run, error) {
	if g.closed {
		return g.runs, nil
	}
	g.closed = true

	if g.err != nil {
		return g.runs, g.abort(g.err)
	}

	for _, v := range g.heap.Finalize() {
		if err := g.emit(v); err != nil {
			return g.runs, g.abort(err)
		}
	}
	if err := g.closeRun(); err != nil {
		return g.runs, err
	}

	if len(g.pending) > 0 {
		g.refill()
		for _, v := range g.heap.Finalize() {
			if err := g.emit(v); err != nil {
				return g.runs, g.abort(err)
			}
		}
		if err := g.closeRun(); err != nil {
			return g.runs, err
		}
	}
	return g.runs, nil
}

// abort closes the run in progress after err. The partial run is reported
// so that it can be cleaned up.
func (g *Generator[T]) abort(err error) error {
	if g.cur == nil {
		return err
	}
	closeErr := g.cur.Close()
	g.cur = nil
	g.runs = append(g.runs, g.run)
	return errors.Join(err, closeErr)
}

// Runs returns the runs completed so far.
func (g *Generator[T]) Runs() []Run {
	return g.runs
}

// Held returns the number of items waiting for the next run.
func (g *Generator[T]) Held() int {
	return len(g.pending)
}
