// Package score is the pass-2 reducer: it assembles each n-gram's
// contingency table from the sub-gram totals republished by pass 1, gates
// it on a primary association metric and writes the scores to named
// streams.
package score

import (
	"fmt"
	"log"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
)

// Stream names besides the per-metric ones.
const (
	StreamContingency = "contingency"
	StreamUnigram     = "unigram"
)

// DefaultMinValue is the gate applied to the primary metric.
const DefaultMinValue = 0.1

// Sink receives pass-2 output. Score streams are named after the metric
// (llr, pmi, chi, dice, ...).
type Sink interface {
	WriteScore(metric, text string, value float64) error
	WriteContingency(text string, t assoc.Table) error
	WriteUnigram(text string, frequency int64) error
}

// Options configure a Scorer.
type Options struct {
	// Total is NGRAM_TOTAL from pass 1. Negative means unset and is
	// rejected.
	Total    int64
	MinValue float64
	// Metric gates emission.
	Metric assoc.Metric
	// Metrics are written for every n-gram passing the gate. The gate
	// metric is always written.
	Metrics      []assoc.Metric
	EmitUnigrams bool
	Logger       *log.Logger
}

// DefaultOptions gates on LLR at DefaultMinValue and writes the four core
// metrics. Total is left unset.
func DefaultOptions() Options {
	return Options{
		Total:    -1,
		MinValue: DefaultMinValue,
		Metric:   assoc.LLR,
		Metrics:  append([]assoc.Metric(nil), assoc.Core...),
	}
}

// Validate checks the options. A missing corpus total is fatal.
func (o Options) Validate() error {
	if o.Total < 0 {
		return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, internalerr.ErrMissingTotal)
	}
	if !o.Metric.Valid() {
		return fmt.Errorf("%w: gate metric %d", internalerr.ErrInvalidConfig, int(o.Metric))
	}
	for _, m := range o.Metrics {
		if !m.Valid() {
			return fmt.Errorf("%w: metric %d", internalerr.ErrInvalidConfig, int(m))
		}
	}
	return nil
}

// metrics returns the gate metric followed by the other selected metrics,
// without duplicates.
func (o Options) metrics() []assoc.Metric {
	streams := []assoc.Metric{o.Metric}
	seen := map[assoc.Metric]bool{o.Metric: true}
	for _, m := range o.Metrics {
		if !seen[m] {
			seen[m] = true
			streams = append(streams, m)
		}
	}
	return streams
}

// StreamNames lists every stream a Scorer with these options may write.
func (o Options) StreamNames() []string {
	var names []string
	for _, m := range o.metrics() {
		names = append(names, m.String())
	}
	names = append(names, StreamContingency)
	if o.EmitUnigrams {
		names = append(names, StreamUnigram)
	}
	return names
}

// Scorer reduces pass-2 groups into a Sink.
type Scorer struct {
	opts    Options
	streams []assoc.Metric
	sink    Sink
	count   counters.Counters
	log     *log.Logger
}

// New creates a Scorer writing to sink. A nil Counters discards
// increments.
func New(opts Options, sink Sink, c counters.Counters) (*Scorer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", internalerr.ErrInvalidConfig)
	}
	if c == nil {
		c = counters.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	streams := opts.metrics()
	logger.Printf("score: ngram total %d, min %s %g, emit unigrams %v", opts.Total, opts.Metric, opts.MinValue, opts.EmitUnigrams)
	return &Scorer{opts: opts, streams: streams, sink: sink, count: c, log: logger}, nil
}

// Streams returns the metrics written for each emitted n-gram, gate first.
func (s *Scorer) Streams() []assoc.Metric {
	return append([]assoc.Metric(nil), s.streams...)
}

// Reduce scores one group of pairs sharing a key identity. Defects in the
// group are counted and skipped; only Sink failures are returned.
func (s *Scorer) Reduce(group []gram.Pair) error {
	if len(group) == 0 {
		return nil
	}
	key := group[0].Key
	switch key.Type {
	case gram.Unigram:
		return s.unigram(group)
	case gram.Ngram:
		return s.ngram(key, group)
	}
	s.count.Inc(counters.MalformedGroup, 1)
	s.log.Printf("score: unexpected key %s, skipping", key)
	return nil
}

func (s *Scorer) unigram(group []gram.Pair) error {
	if !s.opts.EmitUnigrams {
		return nil
	}
	var f int64
	for _, p := range group {
		f += p.Key.Frequency
	}
	if err := s.sink.WriteUnigram(group[0].Key.Text, f); err != nil {
		return fmt.Errorf("write unigram %q: %w", group[0].Key.Text, err)
	}
	s.count.Inc(counters.EmittedUnigram, 1)
	return nil
}

func (s *Scorer) ngram(key gram.Gram, group []gram.Pair) error {
	var head, tail *gram.Gram
	for i := range group {
		v := &group[i].Value
		switch v.Type {
		case gram.Head:
			if head != nil {
				s.count.Inc(counters.ExtraHead, 1)
				s.log.Printf("score: extra HEAD for %s, skipping", key)
				return nil
			}
			head = v
		case gram.Tail:
			if tail != nil {
				s.count.Inc(counters.ExtraTail, 1)
				s.log.Printf("score: extra TAIL for %s, skipping", key)
				return nil
			}
			tail = v
		default:
			s.count.Inc(counters.MalformedGroup, 1)
			s.log.Printf("score: unexpected value %s for %s, skipping", v, key)
			return nil
		}
	}
	if head == nil {
		s.count.Inc(counters.MissingHead, 1)
		s.log.Printf("score: missing head for %s, skipping", key)
		return nil
	}
	if tail == nil {
		s.count.Inc(counters.MissingTail, 1)
		s.log.Printf("score: missing tail for %s, skipping", key)
		return nil
	}

	table, err := assoc.NewTable(key.Frequency, head.Frequency, tail.Frequency, s.opts.Total)
	if err != nil {
		s.count.Inc(counters.ContingencyError, 1)
		s.log.Printf("score: %s head %s tail %s: %v", key, head, tail, err)
		return nil
	}

	gate, err := s.opts.Metric.Compute(table)
	if err != nil {
		s.count.Inc(counters.CalculationError(s.opts.Metric.String()), 1)
		s.log.Printf("score: %s for %s (%s): %v", s.opts.Metric, key, table, err)
		return nil
	}
	if gate < s.opts.MinValue {
		s.count.Inc(counters.LessThanMinValue, 1)
		return nil
	}

	if err := s.sink.WriteScore(s.opts.Metric.String(), key.Text, gate); err != nil {
		return fmt.Errorf("write %s %q: %w", s.opts.Metric, key.Text, err)
	}
	for _, m := range s.streams[1:] {
		v, err := m.Compute(table)
		if err != nil {
			s.count.Inc(counters.CalculationError(m.String()), 1)
			continue
		}
		if err := s.sink.WriteScore(m.String(), key.Text, v); err != nil {
			return fmt.Errorf("write %s %q: %w", m, key.Text, err)
		}
	}
	if err := s.sink.WriteContingency(key.Text, table); err != nil {
		return fmt.Errorf("write contingency %q: %w", key.Text, err)
	}
	s.count.Inc(counters.EmittedNgram, 1)
	return nil
}
