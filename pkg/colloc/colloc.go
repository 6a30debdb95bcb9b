// Package colloc runs a two-pass collocation discovery job over a stream
// of tokenized documents and persists the scored n-grams.
//
// Pass 1 extracts candidate n-grams and joins each one with the totals of
// its head and tail sub-grams. Pass 2 builds the contingency table of every
// n-gram, gates it on a primary association metric and writes the scores
// to a store.Store, a directory of text streams, or both.
package colloc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/config"
	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/runner"
	"github.com/cognicore/colloc/pkg/colloc/score"
	"github.com/cognicore/colloc/pkg/colloc/store"
	"github.com/cognicore/colloc/pkg/colloc/store/textfs"
)

// Options configure a Job. At least one of Store and Output is required.
type Options struct {
	// Components come from config.Loader; nil uses the defaults.
	Components *config.Components
	Store      store.Store
	// Output receives the text streams under OutputDir.
	Output    hackpadfs.FS
	OutputDir string
	// DumpPass1 writes the pass-1 dataset to OutputDir/pass1.bin on Output.
	DumpPass1 bool
	Logger    *log.Logger
}

// Pass1File is the name of the pass-1 dump under OutputDir.
const Pass1File = "pass1.bin"

// Job is a configured collocation run.
type Job struct {
	comp   *config.Components
	runner *runner.Runner
	store  store.Store
	out    hackpadfs.FS
	outDir string
	dump   bool
	log    *log.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Total    int64
	Emitted  int64
	Counters map[string]int64
	Duration time.Duration
}

// New validates opts and prepares a Job.
func New(opts Options) (*Job, error) {
	if opts.Store == nil && opts.Output == nil {
		return nil, fmt.Errorf("%w: no store or output filesystem", internalerr.ErrInvalidConfig)
	}
	if opts.DumpPass1 && opts.Output == nil {
		return nil, fmt.Errorf("%w: pass-1 dump needs an output filesystem", internalerr.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	comp := opts.Components
	if comp == nil {
		var err error
		comp, err = config.Build(config.Default(), logger)
		if err != nil {
			return nil, err
		}
	}
	// Components without a logger inherit the job's.
	c := *comp
	if c.Runner.Logger == nil {
		c.Runner.Logger = logger
	}
	if c.Runner.Aggregate.Logger == nil {
		c.Runner.Aggregate.Logger = logger
	}
	if c.Score.Logger == nil {
		c.Score.Logger = logger
	}
	comp = &c

	r, err := runner.New(comp.Runner)
	if err != nil {
		return nil, err
	}
	sc := comp.Score
	sc.Total = 0
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	return &Job{
		comp:   comp,
		runner: r,
		store:  opts.Store,
		out:    opts.Output,
		outDir: outDir,
		dump:   opts.DumpPass1,
		log:    logger,
	}, nil
}

// Run consumes docs until the channel is closed and scores the corpus.
// The run is recorded in the store, marked failed when Run returns an
// error.
func (j *Job) Run(ctx context.Context, docs <-chan extract.Document) (*Result, error) {
	start := time.Now()
	id := ulid.Make().String()

	if j.store != nil {
		cfg, err := yaml.Marshal(j.comp.Config)
		if err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		if err := j.store.BeginRun(ctx, store.Run{ID: id, StartedAt: start.UTC(), Config: string(cfg)}); err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
	}
	j.log.Printf("colloc: run %s started (%d workers, %d partitions)", id, j.runner.Workers(), j.runner.Partitions())

	set := counters.NewSet()
	total, err := j.run(ctx, id, docs, set)
	res := &Result{
		RunID:    id,
		Total:    total,
		Emitted:  set.Get(counters.EmittedNgram),
		Counters: snapshot(set),
		Duration: time.Since(start),
	}

	if j.store != nil {
		fin := store.Result{Total: total, Counters: res.Counters, FinishedAt: time.Now().UTC()}
		if err != nil {
			fin.Err = err.Error()
		}
		// Record the outcome even when ctx was cancelled.
		if ferr := j.store.FinishRun(context.WithoutCancel(ctx), id, fin); ferr != nil && err == nil {
			err = fmt.Errorf("finish run: %w", ferr)
		}
	}
	if err != nil {
		j.log.Printf("colloc: run %s failed: %v", id, err)
		return res, err
	}
	j.log.Printf("colloc: run %s done in %s, %d ngrams emitted", id, res.Duration.Round(time.Millisecond), res.Emitted)
	return res, nil
}

func (j *Job) run(ctx context.Context, id string, docs <-chan extract.Document, set *counters.Set) (int64, error) {
	ds, err := j.runner.Pass1(ctx, docs, set)
	if err != nil {
		return 0, fmt.Errorf("pass 1: %w", err)
	}
	if j.dump {
		if err := j.dumpPass1(ds); err != nil {
			return ds.Total, err
		}
	}
	streams := j.comp.Score.StreamNames()
	err = j.runner.Pass2(ctx, ds, j.comp.Score, func(p int) (score.Sink, error) {
		var sinks multiSink
		if j.store != nil {
			sinks = append(sinks, store.NewSink(ctx, j.store, id))
		}
		if j.out != nil {
			sinks = append(sinks, textfs.NewSink(j.out, j.outDir, p, streams...))
		}
		return sinks, nil
	}, set)
	if err != nil {
		return ds.Total, fmt.Errorf("pass 2: %w", err)
	}
	return ds.Total, nil
}

// dumpPass1 must run before pass 2, which sorts the partitions in place.
func (j *Job) dumpPass1(ds *runner.Dataset) error {
	var buf bytes.Buffer
	if _, err := ds.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode pass-1 dataset: %w", err)
	}
	if err := hackpadfs.MkdirAll(j.out, j.outDir, 0o755); err != nil {
		return fmt.Errorf("dump pass 1: %w", err)
	}
	file := path.Join(j.outDir, Pass1File)
	if err := hackpadfs.WriteFullFile(j.out, file, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("dump pass 1: %w", err)
	}
	j.log.Printf("colloc: wrote %d pass-1 pairs to %s", ds.Len(), file)
	return nil
}

func snapshot(set *counters.Set) map[string]int64 {
	snap := set.Snapshot()
	out := make(map[string]int64, len(snap))
	for k, v := range snap {
		out[string(k)] = v
	}
	return out
}

// multiSink fans pass-2 output out to several sinks.
type multiSink []score.Sink

func (m multiSink) WriteScore(metric, text string, value float64) error {
	for _, s := range m {
		if err := s.WriteScore(metric, text, value); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) WriteContingency(text string, t assoc.Table) error {
	for _, s := range m {
		if err := s.WriteContingency(text, t); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) WriteUnigram(text string, frequency int64) error {
	for _, s := range m {
		if err := s.WriteUnigram(text, frequency); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that needs it.
func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
