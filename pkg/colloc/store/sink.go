package store

import (
	"context"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
)

// DefaultBatchSize is the number of rows a Sink buffers before writing.
const DefaultBatchSize = 2048

// Sink buffers the output of one pass-2 partition into a Store. It
// satisfies score.Sink; Close writes the remainder. A Sink is not safe for
// concurrent use; open one per partition.
type Sink struct {
	ctx   context.Context
	st    Store
	run   string
	size  int
	batch Batch
}

// NewSink creates a Sink writing to run runID of st.
func NewSink(ctx context.Context, st Store, runID string) *Sink {
	return &Sink{ctx: ctx, st: st, run: runID, size: DefaultBatchSize}
}

// WriteScore implements score.Sink.
func (s *Sink) WriteScore(metric, text string, value float64) error {
	s.batch.Scores = append(s.batch.Scores, ScoreRow{Metric: metric, Text: text, Value: value})
	return s.maybeFlush()
}

// WriteContingency implements score.Sink.
func (s *Sink) WriteContingency(text string, t assoc.Table) error {
	s.batch.Tables = append(s.batch.Tables, TableRow{Text: text, Table: t})
	return s.maybeFlush()
}

// WriteUnigram implements score.Sink.
func (s *Sink) WriteUnigram(text string, frequency int64) error {
	s.batch.Unigrams = append(s.batch.Unigrams, UnigramRow{Text: text, Frequency: frequency})
	return s.maybeFlush()
}

// Flush writes the buffered rows.
func (s *Sink) Flush() error {
	if s.batch.Len() == 0 {
		return nil
	}
	if err := s.st.WriteBatch(s.ctx, s.run, s.batch); err != nil {
		return err
	}
	s.batch.Reset()
	return nil
}

// Close flushes the sink. The Store stays open.
func (s *Sink) Close() error {
	return s.Flush()
}

func (s *Sink) maybeFlush() error {
	if s.batch.Len() < s.size {
		return nil
	}
	return s.Flush()
}
