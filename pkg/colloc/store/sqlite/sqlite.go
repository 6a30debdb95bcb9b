package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	// One writer at a time; pass-2 partitions write concurrently.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scores (
	run_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	ngram TEXT NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY(run_id, metric, ngram),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_scores_rank ON scores(run_id, metric, value DESC);

CREATE TABLE IF NOT EXISTS contingency (
	run_id TEXT NOT NULL,
	ngram TEXT NOT NULL,
	k11 INTEGER NOT NULL,
	k12 INTEGER NOT NULL,
	k21 INTEGER NOT NULL,
	k22 INTEGER NOT NULL,
	PRIMARY KEY(run_id, ngram),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS unigrams (
	run_id TEXT NOT NULL,
	unigram TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	PRIMARY KEY(run_id, unigram),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS counters (
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY(run_id, name),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// BeginRun inserts a new run row
func (s *sqliteStore) BeginRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty run id", internalerr.ErrInvalidInput)
	}
	if r.Status == "" {
		r.Status = store.StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, finished_at, status, config, total, error)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Status, r.Config, r.Total, r.Error)
	if err != nil {
		if exists, _ := s.runExists(ctx, s.db, r.ID); exists {
			return fmt.Errorf("%w: run %s already exists", internalerr.ErrInvalidInput, r.ID)
		}
		return err
	}
	return nil
}

// FinishRun stores the outcome and counters of a run
func (s *sqliteStore) FinishRun(ctx context.Context, id string, res store.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status := store.StatusDone
	if res.Err != "" {
		status = store.StatusFailed
	}
	out, err := tx.ExecContext(ctx, `
UPDATE runs SET finished_at = ?, status = ?, total = ?, error = ? WHERE id = ?;
`, formatTime(res.FinishedAt), status, res.Total, res.Err, id)
	if err != nil {
		return err
	}
	if n, err := out.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO counters (run_id, name, value) VALUES (?, ?, ?)
ON CONFLICT(run_id, name) DO UPDATE SET value = excluded.value;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, v := range res.Counters {
		if _, err := stmt.ExecContext(ctx, id, name, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRun loads one run
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, status, config, total, error FROM runs WHERE id = ?;
`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return r, err
}

// Runs lists all runs, newest first
func (s *sqliteStore) Runs(ctx context.Context) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, status, config, total, error FROM runs
ORDER BY started_at DESC, id DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r                 store.Run
		started, finished string
	)
	if err := sc.Scan(&r.ID, &started, &finished, &r.Status, &r.Config, &r.Total, &r.Error); err != nil {
		return store.Run{}, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return store.Run{}, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return store.Run{}, fmt.Errorf("run %s finished_at: %w", r.ID, err)
	}
	return r, nil
}

// DeleteRun removes a run; its output goes with it
func (s *sqliteStore) DeleteRun(ctx context.Context, id string) error {
	out, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return nil
}

// WriteBatch upserts pass-2 rows in one transaction
func (s *sqliteStore) WriteBatch(ctx context.Context, runID string, b store.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exists, err := s.runExists(ctx, tx, runID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}

	if len(b.Scores) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO scores (run_id, metric, ngram, value) VALUES (?, ?, ?, ?)
ON CONFLICT(run_id, metric, ngram) DO UPDATE SET value = excluded.value;
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range b.Scores {
			if _, err := stmt.ExecContext(ctx, runID, r.Metric, r.Text, r.Value); err != nil {
				return err
			}
		}
	}

	if len(b.Tables) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO contingency (run_id, ngram, k11, k12, k21, k22) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, ngram) DO UPDATE SET
	k11 = excluded.k11, k12 = excluded.k12, k21 = excluded.k21, k22 = excluded.k22;
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range b.Tables {
			t := r.Table
			if _, err := stmt.ExecContext(ctx, runID, r.Text, t.K11, t.K12, t.K21, t.K22); err != nil {
				return err
			}
		}
	}

	if len(b.Unigrams) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO unigrams (run_id, unigram, frequency) VALUES (?, ?, ?)
ON CONFLICT(run_id, unigram) DO UPDATE SET frequency = excluded.frequency;
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range b.Unigrams {
			if _, err := stmt.ExecContext(ctx, runID, r.Text, r.Frequency); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqliteStore) runExists(ctx context.Context, q queryer, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Top returns the k best n-grams of a metric stream
func (s *sqliteStore) Top(ctx context.Context, runID, metric string, k int) ([]store.Score, error) {
	if k <= 0 {
		k = 10
	}
	if exists, err := s.runExists(ctx, s.db, runID); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT ngram, value FROM scores
WHERE run_id = ? AND metric = ?
ORDER BY value DESC, ngram ASC
LIMIT ?;
`, runID, metric, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := []store.Score{}
	for rows.Next() {
		var sc store.Score
		if err := rows.Scan(&sc.Text, &sc.Value); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// Contingency returns the stored table of an n-gram
func (s *sqliteStore) Contingency(ctx context.Context, runID, ngram string) (assoc.Table, error) {
	var t assoc.Table
	err := s.db.QueryRowContext(ctx, `
SELECT k11, k12, k21, k22 FROM contingency WHERE run_id = ? AND ngram = ?;
`, runID, ngram).Scan(&t.K11, &t.K12, &t.K21, &t.K22)
	if errors.Is(err, sql.ErrNoRows) {
		return assoc.Table{}, fmt.Errorf("%w: contingency %q in run %s", internalerr.ErrNotFound, ngram, runID)
	}
	return t, err
}

// Unigram returns a passthrough unigram frequency
func (s *sqliteStore) Unigram(ctx context.Context, runID, unigram string) (int64, error) {
	var f int64
	err := s.db.QueryRowContext(ctx, `
SELECT frequency FROM unigrams WHERE run_id = ? AND unigram = ?;
`, runID, unigram).Scan(&f)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: unigram %q in run %s", internalerr.ErrNotFound, unigram, runID)
	}
	return f, err
}

// Counters returns the counters saved with a run
func (s *sqliteStore) Counters(ctx context.Context, runID string) (map[string]int64, error) {
	if exists, err := s.runExists(ctx, s.db, runID); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM counters WHERE run_id = ?;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			v    int64
		)
		if err := rows.Scan(&name, &v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, rows.Err()
}
