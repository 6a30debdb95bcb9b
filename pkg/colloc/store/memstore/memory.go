package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runData
}

type runData struct {
	run      store.Run
	scores   map[string]map[string]float64
	tables   map[string]assoc.Table
	unigrams map[string]int64
	counters map[string]int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]*runData)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// BeginRun registers a run. Starting an existing run id fails.
func (s *Store) BeginRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty run id", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("%w: run %s already exists", internalerr.ErrInvalidInput, r.ID)
	}
	if r.Status == "" {
		r.Status = store.StatusRunning
	}
	s.runs[r.ID] = &runData{
		run:      r,
		scores:   make(map[string]map[string]float64),
		tables:   make(map[string]assoc.Table),
		unigrams: make(map[string]int64),
		counters: make(map[string]int64),
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id string, res store.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(id)
	if err != nil {
		return err
	}
	d.run.FinishedAt = res.FinishedAt
	d.run.Total = res.Total
	d.run.Error = res.Err
	d.run.Status = store.StatusDone
	if res.Err != "" {
		d.run.Status = store.StatusFailed
	}
	for k, v := range res.Counters {
		d.counters[k] = v
	}
	return nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.lookup(id)
	if err != nil {
		return store.Run{}, err
	}
	return d.run, nil
}

// Runs returns all runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Run, 0, len(s.runs))
	for _, d := range s.runs {
		out = append(out, d.run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// DeleteRun removes a run and all of its output.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.runs, id)
	return nil
}

// WriteBatch stores pass-2 rows. Rewriting a row replaces it.
func (s *Store) WriteBatch(ctx context.Context, runID string, b store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(runID)
	if err != nil {
		return err
	}
	for _, r := range b.Scores {
		m := d.scores[r.Metric]
		if m == nil {
			m = make(map[string]float64)
			d.scores[r.Metric] = m
		}
		m[r.Text] = r.Value
	}
	for _, r := range b.Tables {
		d.tables[r.Text] = r.Table
	}
	for _, r := range b.Unigrams {
		d.unigrams[r.Text] = r.Frequency
	}
	return nil
}

// Top returns the k highest scores of a metric, ties broken by text.
func (s *Store) Top(ctx context.Context, runID, metric string, k int) ([]store.Score, error) {
	if k <= 0 {
		k = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}
	scores := make([]store.Score, 0, len(d.scores[metric]))
	for text, v := range d.scores[metric] {
		scores = append(scores, store.Score{Text: text, Value: v})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].Text < scores[j].Text
	})
	if len(scores) > k {
		scores = scores[:k]
	}
	return scores, nil
}

// Contingency returns the table of one n-gram.
func (s *Store) Contingency(ctx context.Context, runID, ngram string) (assoc.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.lookup(runID)
	if err != nil {
		return assoc.Table{}, err
	}
	t, ok := d.tables[ngram]
	if !ok {
		return assoc.Table{}, fmt.Errorf("%w: contingency %q", internalerr.ErrNotFound, ngram)
	}
	return t, nil
}

// Unigram returns a passthrough unigram frequency.
func (s *Store) Unigram(ctx context.Context, runID, unigram string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.lookup(runID)
	if err != nil {
		return 0, err
	}
	f, ok := d.unigrams[unigram]
	if !ok {
		return 0, fmt.Errorf("%w: unigram %q", internalerr.ErrNotFound, unigram)
	}
	return f, nil
}

// Counters returns the counters saved with a run.
func (s *Store) Counters(ctx context.Context, runID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(d.counters))
	for k, v := range d.counters {
		out[k] = v
	}
	return out, nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(id string) (*runData, error) {
	d, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return d, nil
}

var _ store.Store = (*Store)(nil)
