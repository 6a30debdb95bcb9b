// Package runner executes the two collocation passes in-process: map tasks
// on a pool of workers, a per-worker combiner, a partitioned shuffle with
// secondary sort, and parallel reduce tasks per partition.
//
// The runner stands in for a cluster scheduler. Workers share no mutable
// state; they exchange records only through partitions, and each worker
// counts into its own counter set that is merged once the stage is done.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/cognicore/colloc/pkg/colloc/aggregate"
	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/score"
)

// DefaultPartitions is the number of reduce partitions.
const DefaultPartitions = 8

// combineAt is the smallest bucket size at which a map worker runs the
// combiner. After a combine the threshold moves to twice the combined size.
const combineAt = 1 << 16

// Options configure a Runner.
type Options struct {
	// Workers bounds the goroutines of every stage. Zero uses GOMAXPROCS.
	Workers    int
	Partitions int
	Extract    extract.Config
	Aggregate  aggregate.Options
	Logger     *log.Logger
}

// DefaultOptions returns sentence windows, the reference prune and
// GOMAXPROCS workers.
func DefaultOptions() Options {
	return Options{
		Partitions: DefaultPartitions,
		Extract:    extract.DefaultConfig(),
		Aggregate:  aggregate.DefaultOptions(),
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", internalerr.ErrInvalidConfig, o.Workers)
	}
	if o.Partitions < 1 {
		return fmt.Errorf("%w: partitions must be positive, got %d", internalerr.ErrInvalidConfig, o.Partitions)
	}
	if err := o.Extract.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := o.Aggregate.Validate(); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	return nil
}

// Runner drives both passes.
type Runner struct {
	opts Options
	log  *log.Logger
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Aggregate.Logger == nil {
		opts.Aggregate.Logger = logger
	}
	return &Runner{opts: opts, log: logger}, nil
}

// Workers returns the effective worker count.
func (r *Runner) Workers() int { return r.opts.Workers }

// Partitions returns the partition count.
func (r *Runner) Partitions() int { return r.opts.Partitions }

// Dataset is the pass-1 output, already partitioned by n-gram identity for
// pass 2.
type Dataset struct {
	Partitions [][]gram.Pair
	// Total is NGRAM_TOTAL, the number of n-gram candidates counted.
	Total int64
}

// Len returns the number of pairs across partitions.
func (d *Dataset) Len() int {
	n := 0
	for _, p := range d.Partitions {
		n += len(p)
	}
	return n
}

// Pass1 consumes docs until the channel is closed, then aggregates the
// sub-gram groups. Counters of all workers are merged into c.
func (r *Runner) Pass1(ctx context.Context, docs <-chan extract.Document, c *counters.Set) (*Dataset, error) {
	shuffled, err := r.mapStage(ctx, docs, c)
	if err != nil {
		return nil, err
	}
	total := c.Get(counters.NgramTotal)

	out := make([][][]gram.Pair, r.opts.Partitions)
	err = r.each(ctx, r.opts.Partitions, c, func(p int, wc *counters.Set) error {
		agg, err := aggregate.New(r.opts.Aggregate, wc)
		if err != nil {
			return err
		}
		recs := shuffled[p]
		shuffled[p] = nil
		gram.SortRecords(recs)

		buckets := make([][]gram.Pair, r.opts.Partitions)
		for _, g := range gram.Groups(recs) {
			if err := ctx.Err(); err != nil {
				return err
			}
			agg.Reduce(g, func(pair gram.Pair) {
				q := gram.PartitionGram(pair.Key, r.opts.Partitions)
				buckets[q] = append(buckets[q], pair)
			})
		}
		out[p] = buckets
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Partitions: make([][]gram.Pair, r.opts.Partitions), Total: total}
	for _, buckets := range out {
		for q, pairs := range buckets {
			ds.Partitions[q] = append(ds.Partitions[q], pairs...)
		}
	}
	r.log.Printf("runner: pass 1 done, %d pairs, ngram total %d", ds.Len(), total)
	return ds, nil
}

// SinkFactory opens the sink of one pass-2 partition. Sinks implementing
// io.Closer are closed when their partition is done.
type SinkFactory func(partition int) (score.Sink, error)

// Pass2 scores every partition of ds. opts.Total is replaced by ds.Total.
func (r *Runner) Pass2(ctx context.Context, ds *Dataset, opts score.Options, sinks SinkFactory, c *counters.Set) error {
	if ds == nil {
		return fmt.Errorf("%w: nil dataset", internalerr.ErrInvalidInput)
	}
	opts.Total = ds.Total
	if opts.Logger == nil {
		opts.Logger = r.log
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	err := r.each(ctx, len(ds.Partitions), c, func(p int, wc *counters.Set) (err error) {
		sink, err := sinks(p)
		if err != nil {
			return fmt.Errorf("open sink %d: %w", p, err)
		}
		if cl, ok := sink.(io.Closer); ok {
			defer func() {
				if cerr := cl.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("close sink %d: %w", p, cerr)
				}
			}()
		}
		sc, err := score.New(opts, sink, wc)
		if err != nil {
			return err
		}
		pairs := ds.Partitions[p]
		gram.SortPairs(pairs)
		for _, g := range gram.PairGroups(pairs) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sc.Reduce(g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Printf("runner: pass 2 done, %d ngrams emitted", c.Get(counters.EmittedNgram))
	return nil
}

// mapStage runs the extractors and returns the combined records of every
// worker, bucketed by partition.
func (r *Runner) mapStage(ctx context.Context, docs <-chan extract.Document, c *counters.Set) ([][]gram.Record, error) {
	parts := r.opts.Partitions
	perWorker := make([][][]gram.Record, r.opts.Workers)
	sets := make([]*counters.Set, r.opts.Workers)
	errs := make([]error, r.opts.Workers)

	var wg sync.WaitGroup
	wg.Add(r.opts.Workers)
	for w := 0; w < r.opts.Workers; w++ {
		go func(w int) {
			defer wg.Done()
			wc := counters.NewSet()
			sets[w] = wc
			buckets := make([][]gram.Record, parts)
			next := make([]int, parts)
			for p := range next {
				next[p] = combineAt
			}
			ex, err := extract.New(r.opts.Extract, func(rec gram.Record) {
				p := gram.Partition(rec.Key, parts)
				buckets[p] = append(buckets[p], rec)
				if len(buckets[p]) >= next[p] {
					buckets[p] = gram.Combine(buckets[p])
					// Distinct keys do not shrink; wait for the bucket to double.
					next[p] = max(combineAt, 2*len(buckets[p]))
				}
			}, wc)
			if err != nil {
				errs[w] = err
				drain(docs)
				return
			}
			for doc := range docs {
				if err := ctx.Err(); err != nil {
					errs[w] = err
					drain(docs)
					return
				}
				ex.Extract(doc)
			}
			for p := range buckets {
				buckets[p] = gram.Combine(buckets[p])
			}
			perWorker[w] = buckets
		}(w)
	}
	wg.Wait()

	for _, wc := range sets {
		c.Merge(wc)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	shuffled := make([][]gram.Record, parts)
	for _, buckets := range perWorker {
		for p, recs := range buckets {
			shuffled[p] = append(shuffled[p], recs...)
		}
	}
	return shuffled, nil
}

// each runs fn for tasks 0..n-1 on at most Workers goroutines, each task
// with a fresh counter set merged into c afterwards. The first error stops
// the remaining tasks from starting.
func (r *Runner) each(ctx context.Context, n int, c *counters.Set, fn func(task int, wc *counters.Set) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan int)
	go func() {
		defer close(tasks)
		for i := 0; i < n; i++ {
			select {
			case tasks <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	workers := min(r.opts.Workers, n)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for task := range tasks {
				wc := counters.NewSet()
				err := fn(task, wc)
				c.Merge(wc)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
				}
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// drain discards the remaining documents so the producer never blocks on a
// worker that gave up.
func drain(docs <-chan extract.Document) {
	for range docs {
	}
}
