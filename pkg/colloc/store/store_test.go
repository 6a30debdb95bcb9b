package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/store"
	"github.com/cognicore/colloc/pkg/colloc/store/memstore"
	"github.com/cognicore/colloc/pkg/colloc/store/sqlite"
)

type storeFactory func(t *testing.T) store.Store

var factories = map[string]storeFactory{
	"MemStore": func(t *testing.T) store.Store {
		return memstore.New()
	},
	"SQLiteStore": func(t *testing.T) store.Store {
		st, err := sqlite.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "colloc.db"))
		require.NoError(t, err)
		return st
	},
}

func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, st store.Store)) {
	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			st := factory(t)
			t.Cleanup(func() { st.Close() })
			testFn(t, st)
		})
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func begin(t *testing.T, st store.Store, id string, at time.Time) {
	t.Helper()
	require.NoError(t, st.BeginRun(context.Background(), store.Run{ID: id, StartedAt: at, Config: "score:\n  metric: llr\n"}))
}

func TestRunLifecycle(t *testing.T) {
	runTestsForAllStores(t, "Lifecycle", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)

		got, err := st.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusRunning, got.Status)
		assert.True(t, got.StartedAt.Equal(t0))
		assert.True(t, got.FinishedAt.IsZero())
		assert.Contains(t, got.Config, "llr")

		err = st.BeginRun(ctx, store.Run{ID: "r1", StartedAt: t0})
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "duplicate id")
		assert.ErrorIs(t, st.BeginRun(ctx, store.Run{}), internalerr.ErrInvalidInput, "empty id")

		require.NoError(t, st.FinishRun(ctx, "r1", store.Result{
			Total:      36,
			Counters:   map[string]int64{"NGRAM_TOTAL": 36, "EMPTYDOC": 1},
			FinishedAt: t0.Add(time.Minute),
		}))
		got, err = st.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusDone, got.Status)
		assert.Equal(t, int64(36), got.Total)
		assert.True(t, got.FinishedAt.Equal(t0.Add(time.Minute)))

		c, err := st.Counters(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"NGRAM_TOTAL": 36, "EMPTYDOC": 1}, c)
	})
}

func TestFailedRun(t *testing.T) {
	runTestsForAllStores(t, "Failed", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)
		require.NoError(t, st.FinishRun(ctx, "r1", store.Result{Err: "sink closed", FinishedAt: t0}))

		got, err := st.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusFailed, got.Status)
		assert.Equal(t, "sink closed", got.Error)

		assert.ErrorIs(t, st.FinishRun(ctx, "nope", store.Result{}), internalerr.ErrNotFound)
	})
}

func TestRunsNewestFirst(t *testing.T) {
	runTestsForAllStores(t, "Runs", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "old", t0)
		begin(t, st, "new", t0.Add(time.Hour))
		begin(t, st, "mid", t0.Add(time.Minute))

		runs, err := st.Runs(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "new", runs[0].ID)
		assert.Equal(t, "mid", runs[1].ID)
		assert.Equal(t, "old", runs[2].ID)

		require.NoError(t, st.DeleteRun(ctx, "mid"))
		runs, err = st.Runs(ctx)
		require.NoError(t, err)
		assert.Len(t, runs, 2)

		_, err = st.GetRun(ctx, "mid")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
		assert.ErrorIs(t, st.DeleteRun(ctx, "mid"), internalerr.ErrNotFound)
	})
}

func TestWriteBatchAndQuery(t *testing.T) {
	runTestsForAllStores(t, "Batch", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)

		require.NoError(t, st.WriteBatch(ctx, "r1", store.Batch{
			Scores: []store.ScoreRow{
				{Metric: "llr", Text: "new\tyork", Value: 12.5},
				{Metric: "llr", Text: "big\tcity", Value: 8},
				{Metric: "llr", Text: "city\tlights", Value: 8},
				{Metric: "llr", Text: "york\tcity", Value: 1},
				{Metric: "dice", Text: "new\tyork", Value: 1},
			},
			Tables: []store.TableRow{
				{Text: "new\tyork", Table: assoc.Table{K11: 3, K12: 0, K21: 0, K22: 33}},
			},
			Unigrams: []store.UnigramRow{{Text: "york", Frequency: 3}},
		}))

		top, err := st.Top(ctx, "r1", "llr", 3)
		require.NoError(t, err)
		assert.Equal(t, []store.Score{
			{Text: "new\tyork", Value: 12.5},
			{Text: "big\tcity", Value: 8},
			{Text: "city\tlights", Value: 8},
		}, top, "ties are ordered by text")

		all, err := st.Top(ctx, "r1", "llr", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4, "k <= 0 means the default")

		none, err := st.Top(ctx, "r1", "chi_square", 5)
		require.NoError(t, err)
		assert.Empty(t, none)

		tbl, err := st.Contingency(ctx, "r1", "new\tyork")
		require.NoError(t, err)
		assert.Equal(t, assoc.Table{K11: 3, K12: 0, K21: 0, K22: 33}, tbl)
		_, err = st.Contingency(ctx, "r1", "big\tcity")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)

		f, err := st.Unigram(ctx, "r1", "york")
		require.NoError(t, err)
		assert.Equal(t, int64(3), f)
		_, err = st.Unigram(ctx, "r1", "lights")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
	})
}

func TestWriteBatchUpserts(t *testing.T) {
	runTestsForAllStores(t, "Upsert", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)
		row := store.Batch{Scores: []store.ScoreRow{{Metric: "llr", Text: "a\tb", Value: 1}}}
		require.NoError(t, st.WriteBatch(ctx, "r1", row))
		row.Scores[0].Value = 2
		require.NoError(t, st.WriteBatch(ctx, "r1", row))

		top, err := st.Top(ctx, "r1", "llr", 10)
		require.NoError(t, err)
		assert.Equal(t, []store.Score{{Text: "a\tb", Value: 2}}, top)
	})
}

func TestUnknownRun(t *testing.T) {
	runTestsForAllStores(t, "UnknownRun", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		err := st.WriteBatch(ctx, "ghost", store.Batch{Unigrams: []store.UnigramRow{{Text: "x", Frequency: 1}}})
		assert.ErrorIs(t, err, internalerr.ErrNotFound)

		_, err = st.Top(ctx, "ghost", "llr", 1)
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
		_, err = st.Counters(ctx, "ghost")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
	})
}

func TestDeleteRunDropsOutput(t *testing.T) {
	runTestsForAllStores(t, "DeleteOutput", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)
		require.NoError(t, st.WriteBatch(ctx, "r1", store.Batch{
			Tables: []store.TableRow{{Text: "a\tb", Table: assoc.Table{K11: 1, K12: 1, K21: 1, K22: 1}}},
		}))
		require.NoError(t, st.DeleteRun(ctx, "r1"))

		begin(t, st, "r1", t0)
		_, err := st.Contingency(ctx, "r1", "a\tb")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
	})
}

func TestSinkBatches(t *testing.T) {
	runTestsForAllStores(t, "Sink", func(t *testing.T, st store.Store) {
		ctx := context.Background()
		begin(t, st, "r1", t0)

		sink := store.NewSink(ctx, st, "r1")
		require.NoError(t, sink.WriteScore("llr", "new\tyork", 12.5))
		require.NoError(t, sink.WriteContingency("new\tyork", assoc.Table{K11: 3, K22: 33}))
		require.NoError(t, sink.WriteUnigram("york", 3))

		top, err := st.Top(ctx, "r1", "llr", 10)
		require.NoError(t, err)
		assert.Empty(t, top, "rows stay buffered until the batch fills")

		require.NoError(t, sink.Close())
		top, err = st.Top(ctx, "r1", "llr", 10)
		require.NoError(t, err)
		assert.Equal(t, []store.Score{{Text: "new\tyork", Value: 12.5}}, top)

		f, err := st.Unigram(ctx, "r1", "york")
		require.NoError(t, err)
		assert.Equal(t, int64(3), f)
	})
}

func TestSinkFlushesFullBatch(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	begin(t, st, "r1", t0)

	sink := store.NewSink(ctx, st, "r1")
	for i := 0; i < store.DefaultBatchSize; i++ {
		require.NoError(t, sink.WriteUnigram(string(rune('a'+i%26))+string(rune('a'+i/26%26))+string(rune('a'+i/676)), 2))
	}
	f, err := st.Unigram(ctx, "r1", "aaa")
	require.NoError(t, err, "a full batch is written without Close")
	assert.Equal(t, int64(2), f)
}

func TestSinkWriteToUnknownRun(t *testing.T) {
	sink := store.NewSink(context.Background(), memstore.New(), "ghost")
	require.NoError(t, sink.WriteUnigram("x", 1))
	assert.ErrorIs(t, sink.Close(), internalerr.ErrNotFound)
}
