package extsort

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jvahrenhold/tpie/compactor"
	"github.com/jvahrenhold/tpie/merger"
	"github.com/jvahrenhold/tpie/monitoring"
	"github.com/jvahrenhold/tpie/recordio"
	"github.com/jvahrenhold/tpie/runs"
	"github.com/jvahrenhold/tpie/storage"
	"github.com/jvahrenhold/tpie/storage/local"
	"github.com/jvahrenhold/tpie/stream"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNilCodec           = errors.New("extsort: codec cannot be nil")
	ErrNilLess            = errors.New("extsort: less function cannot be nil")
	ErrInvalidMemory      = errors.New("extsort: memory must hold at least one item")
	ErrInvalidFanIn       = errors.New("extsort: fan-in must be at least 2")
	ErrInvalidConcurrency = errors.New("extsort: concurrency must be at least 1")
	ErrUniqueType         = errors.New("extsort: unique function does not match the item type")
)

// Result summarises a sort.
type Result struct {
	// Items is the number of items read from the source.
	Items int64
	// Written is the number of items written to the sink. It is smaller
	// than Items only when duplicates are dropped.
	Written int64
	// Runs is the number of runs produced by run generation.
	Runs int
	// Passes is the number of merge passes, the final merge included.
	Passes int
}

// Sorter sorts item sequences larger than memory.
type Sorter[T any] struct {
	codec  recordio.Codec[T]
	less   func(a, b T) bool
	equal  func(a, b T) bool
	o      options
	logger logrus.FieldLogger
}

// New creates a sorter for items encoded by codec and ordered by less.
func New[T any](codec recordio.Codec[T], less func(a, b T) bool, opts ...Option) (*Sorter[T], error) {
	if codec == nil {
		return nil, ErrNilCodec
	}
	if less == nil {
		return nil, ErrNilLess
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case o.memory < 1:
		return nil, ErrInvalidMemory
	case o.fanIn < 2:
		return nil, ErrInvalidFanIn
	case o.concurrency < 1:
		return nil, ErrInvalidConcurrency
	}

	s := &Sorter[T]{
		codec:  codec,
		less:   less,
		o:      o,
		logger: monitoring.WithComponent(o.logger, "extsort"),
	}
	if o.unique != nil {
		equal, ok := o.unique.(func(a, b T) bool)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrUniqueType, o.unique)
		}
		s.equal = equal
	}
	return s, nil
}

// Sort reads src to the end and writes its items to dst in ascending
// order. Every run written on the way is removed before Sort returns.
func (s *Sorter[T]) Sort(ctx context.Context, src merger.Source[T], dst stream.Sink[T]) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.o.metrics.SortDone(time.Since(start).Seconds(), err)
	}()

	store, release, err := s.openStore()
	if err != nil {
		return res, err
	}
	defer func() {
		err = errors.Join(err, release())
	}()

	set := &runSet{store: store}
	defer func() {
		err = errors.Join(err, set.removeAll(context.WithoutCancel(ctx)))
	}()

	names, err := s.generate(ctx, store, set, src, &res)
	if err != nil {
		return res, err
	}

	for len(names) > s.o.fanIn {
		if names, err = s.mergePass(ctx, store, set, names); err != nil {
			return res, err
		}
		res.Passes++
	}

	if len(names) > 0 {
		if res.Written, err = s.finalMerge(ctx, store, names, dst); err != nil {
			return res, err
		}
		res.Passes++
		s.o.metrics.MergePass()
	}

	s.logger.WithField("action", "sort_done").
		WithField("items", res.Items).
		WithField("runs", res.Runs).
		WithField("passes", res.Passes).
		WithField("took", time.Since(start)).
		Info("sort complete")
	return res, nil
}

func (s *Sorter[T]) openStore() (storage.Store, func() error, error) {
	if s.o.store != nil {
		return s.o.store, func() error { return nil }, nil
	}

	dir, err := os.MkdirTemp("", "extsort-*")
	if err != nil {
		return nil, nil, fmt.Errorf("extsort: %w", err)
	}
	store, err := local.NewLocalStorage(dir)
	if err != nil {
		return nil, nil, errors.Join(err, os.RemoveAll(dir))
	}
	return store, func() error { return os.RemoveAll(dir) }, nil
}

// generate writes src as sorted runs and returns their names.
func (s *Sorter[T]) generate(ctx context.Context, store storage.Store, set *runSet, src merger.Source[T], res *Result) (names []string, err error) {
	gen, err := runs.New(s.o.memory, s.less, func(int) (string, runs.RunWriter[T], error) {
		return s.createRun(ctx, store, set)
	}, runs.WithLogger(s.logger), runs.WithMetrics(s.o.metrics))
	if err != nil {
		return nil, err
	}

	err = s.feed(ctx, gen, src, res)
	created, closeErr := gen.Close()
	if err = errors.Join(err, closeErr); err != nil {
		return nil, err
	}

	res.Runs = len(created)
	names = make([]string, len(created))
	for i, r := range created {
		names[i] = r.Name
	}

	s.logger.WithField("action", "sort_generate").
		WithField("items", res.Items).
		WithField("runs", res.Runs).
		Debug("run generation complete")
	return names, nil
}

func (s *Sorter[T]) feed(ctx context.Context, gen *runs.Generator[T], src merger.Source[T], res *Result) (err error) {
	if err = src.PullBegin(); err != nil {
		return errors.Join(err, src.PullEnd())
	}
	defer func() {
		err = errors.Join(err, src.PullEnd())
	}()

	for src.CanPull() {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := src.Pull()
		if err != nil {
			return err
		}
		if err := gen.Push(v); err != nil {
			return err
		}
		res.Items++
	}
	return nil
}

// createRun opens a new run in store.
func (s *Sorter[T]) createRun(ctx context.Context, store storage.Store, set *runSet) (string, *stream.Writer[T], error) {
	name := "run-" + uuid.NewString()
	wc, err := store.Create(ctx, name)
	if err != nil {
		return "", nil, fmt.Errorf("extsort: create run: %w", err)
	}
	set.add(name)

	w, err := stream.NewWriter(wc, s.codec, &stream.Options{Compress: s.o.compress})
	if err != nil {
		return "", nil, errors.Join(err, wc.Close())
	}
	return name, w, nil
}

// openRuns opens a reader for every named run.
func (s *Sorter[T]) openRuns(ctx context.Context, store storage.Store, names []string) ([]merger.Source[T], error) {
	sources := make([]merger.Source[T], 0, len(names))
	for _, name := range names {
		rc, err := store.Open(ctx, name)
		if err != nil {
			for _, src := range sources {
				err = errors.Join(err, src.PullEnd())
			}
			return nil, fmt.Errorf("extsort: open run: %w", err)
		}
		sources = append(sources, stream.NewReader(rc, s.codec, nil))
	}
	return sources, nil
}

// mergePass merges names in groups of at most fan-in runs and returns the
// names of the merged runs.
func (s *Sorter[T]) mergePass(ctx context.Context, store storage.Store, set *runSet, names []string) ([]string, error) {
	groups := split(names, s.o.fanIn)
	merged := make([]string, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.o.concurrency)
	for i, group := range groups {
		if len(group) == 1 {
			merged[i] = group[0]
			continue
		}
		g.Go(func() error {
			name, err := s.mergeGroup(gctx, store, set, group)
			merged[i] = name
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for _, group := range groups {
		if len(group) > 1 {
			errs = append(errs, set.remove(ctx, group...))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s.o.metrics.MergePass()
	s.logger.WithField("action", "sort_merge_pass").
		WithField("runs_in", len(names)).
		WithField("runs_out", len(merged)).
		Debug("merge pass complete")
	return merged, nil
}

// mergeGroup merges the named runs into a new run.
func (s *Sorter[T]) mergeGroup(ctx context.Context, store storage.Store, set *runSet, group []string) (name string, err error) {
	sources, err := s.openRuns(ctx, store, group)
	if err != nil {
		return "", err
	}
	m, err := merger.Of(s.less, sources...)
	if err != nil {
		return "", err
	}

	name, w, err := s.createRun(ctx, store, set)
	if err != nil {
		for _, src := range sources {
			err = errors.Join(err, src.PullEnd())
		}
		return "", err
	}

	n, err := stream.Copy[T](contextSink[T]{ctx: ctx, sink: w}, m)
	if err = errors.Join(err, w.Close()); err != nil {
		return name, err
	}
	s.o.metrics.Merged(n)
	return name, nil
}

func (s *Sorter[T]) finalMerge(ctx context.Context, store storage.Store, names []string, dst stream.Sink[T]) (int64, error) {
	sources, err := s.openRuns(ctx, store, names)
	if err != nil {
		return 0, err
	}
	m, err := merger.Of(s.less, sources...)
	if err != nil {
		return 0, err
	}

	sink := contextSink[T]{ctx: ctx, sink: dst}
	var n int64
	if s.equal != nil {
		n, err = compactor.Compact[T](sink, m, s.equal)
	} else {
		n, err = stream.Copy[T](sink, m)
	}
	s.o.metrics.Merged(n)
	return n, err
}

// split divides names into the fewest groups of at most k, with sizes
// differing by at most one.
func split(names []string, k int) [][]string {
	count := (len(names) + k - 1) / k
	groups := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		lo := i * len(names) / count
		hi := (i + 1) * len(names) / count
		groups = append(groups, names[lo:hi])
	}
	return groups
}

// contextSink fails writes once ctx is done.
type contextSink[T any] struct {
	ctx  context.Context
	sink stream.Sink[T]
}

func (c contextSink[T]) Write(item T) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	return c.sink.Write(item)
}

// runSet tracks the runs of one sort so that they can be removed.
type runSet struct {
	store storage.Store
	mu    sync.Mutex
	names map[string]struct{}
}

func (r *runSet) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	r.names[name] = struct{}{}
}

func (r *runSet) remove(ctx context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		if err := r.store.Remove(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("extsort: remove run: %w", err))
			continue
		}
		r.mu.Lock()
		delete(r.names, name)
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (r *runSet) removeAll(ctx context.Context) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return r.remove(ctx, names...)
}
