package store

import (
	"context"
	"time"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
)

// Store persists the results of collocation runs
type Store interface {
	Close() error

	// Runs
	BeginRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, id string, res Result) error
	GetRun(ctx context.Context, id string) (Run, error)
	Runs(ctx context.Context) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Pass-2 output
	WriteBatch(ctx context.Context, runID string, b Batch) error
	Top(ctx context.Context, runID, metric string, k int) ([]Score, error)
	Contingency(ctx context.Context, runID, ngram string) (assoc.Table, error)
	Unigram(ctx context.Context, runID, unigram string) (int64, error)
	Counters(ctx context.Context, runID string) (map[string]int64, error)
}

// Run status values
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run describes one job execution
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	// Config is the job configuration as YAML.
	Config string
	// Total is NGRAM_TOTAL, known once pass 1 is done.
	Total int64
	Error string
}

// Result closes a run
type Result struct {
	Total      int64
	Counters   map[string]int64
	FinishedAt time.Time
	// Err marks the run failed when non-empty.
	Err string
}

// Score is one n-gram's value for a metric
type Score struct {
	Text  string
	Value float64
}

// ScoreRow is a Score tagged with its metric stream
type ScoreRow struct {
	Metric string
	Text   string
	Value  float64
}

// TableRow is one contingency record
type TableRow struct {
	Text  string
	Table assoc.Table
}

// UnigramRow is one unigram passthrough record
type UnigramRow struct {
	Text      string
	Frequency int64
}

// Batch groups pass-2 output written in one call
type Batch struct {
	Scores   []ScoreRow
	Tables   []TableRow
	Unigrams []UnigramRow
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Scores) + len(b.Tables) + len(b.Unigrams)
}

// Reset empties the batch, keeping its capacity.
func (b *Batch) Reset() {
	b.Scores = b.Scores[:0]
	b.Tables = b.Tables[:0]
	b.Unigrams = b.Unigrams[:0]
}
