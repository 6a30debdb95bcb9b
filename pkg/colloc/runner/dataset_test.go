package runner

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/score"
)

func TestDatasetReloadScoresTheSame(t *testing.T) {
	opts := DefaultOptions()
	opts.Workers = 2
	opts.Partitions = 3
	opts.Logger = log.New(io.Discard, "", 0)
	r, err := New(opts)
	require.NoError(t, err)

	ds, err := r.Pass1(context.Background(), feed(randomDocs(3, 50)), counters.NewSet())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := ds.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := ReadDataset(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ds.Total, loaded.Total)
	assert.Equal(t, ds.Len(), loaded.Len())
	require.Len(t, loaded.Partitions, 3)

	sopts := score.DefaultOptions()
	sopts.EmitUnigrams = true
	sopts.MinValue = 0
	want, got := newMemSink(), newMemSink()
	require.NoError(t, r.Pass2(context.Background(), ds, sopts, want.factory, counters.NewSet()))
	require.NoError(t, r.Pass2(context.Background(), loaded, sopts, got.factory, counters.NewSet()))

	require.NotEmpty(t, want.contingency)
	assert.Equal(t, want.scores, got.scores)
	assert.Equal(t, want.contingency, got.contingency)
	assert.Equal(t, want.unigrams, got.unigrams)
}

func TestDatasetEmptyPartitions(t *testing.T) {
	ds := &Dataset{Partitions: make([][]gram.Pair, 4)}
	var buf bytes.Buffer
	_, err := ds.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadDataset(&buf)
	require.NoError(t, err)
	assert.Len(t, loaded.Partitions, 4)
	assert.Zero(t, loaded.Len())
}

func TestReadDatasetRejectsCorruptInput(t *testing.T) {
	ds := &Dataset{
		Partitions: [][]gram.Pair{
			{{Key: gram.New("iwo\tjima", 2, gram.Ngram), Value: gram.New("iwo", 2, gram.Head)}},
			{{Key: gram.New("jima", 4, gram.Unigram), Value: gram.New("jima", 4, gram.Unigram)}},
		},
		Total: 9,
	}
	var buf bytes.Buffer
	_, err := ds.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	for i := 0; i < len(data); i++ {
		_, err := ReadDataset(bytes.NewReader(data[:i]))
		assert.Error(t, err, "prefix of %d bytes", i)
	}

	_, err = ReadDataset(bytes.NewReader(append(append([]byte(nil), data...), 0)))
	assert.ErrorContains(t, err, "trailing data")

	bad := append([]byte("XXXX"), data[len(datasetMagic):]...)
	_, err = ReadDataset(bytes.NewReader(bad))
	assert.ErrorContains(t, err, "bad magic")

	_, err = (&Dataset{Partitions: make([][]gram.Pair, 1), Total: -1}).WriteTo(io.Discard)
	assert.Error(t, err)
}
