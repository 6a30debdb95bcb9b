package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, extract.Sentence, cfg.Extract.WindowMode)
	assert.Equal(t, 3, cfg.Extract.WindowSize)
	assert.Equal(t, 10000, cfg.Extract.FlushThreshold)
	assert.Equal(t, 1000, cfg.Extract.MaxPairsPerAnchor)
	assert.Equal(t, int64(2), cfg.Aggregate.MinSupport)
	assert.Equal(t, assoc.LLR, cfg.Score.Metric)
	assert.InDelta(t, 0.1, cfg.Score.MinValue, 1e-12)
	assert.Equal(t, assoc.Core, cfg.Score.Metrics)
	assert.False(t, cfg.Score.EmitUnigrams)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "job.yaml", `
extract:
  window_mode: s_window
  window_size: 5
aggregate:
  min_support: 3
score:
  metric: dice
  min_value: 0.25
  metrics: [dice, pmi, mi]
  emit_unigrams: true
run:
  workers: 4
  partitions: 16
output:
  db: out.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, extract.SWindow, cfg.Extract.WindowMode)
	assert.Equal(t, 5, cfg.Extract.WindowSize)
	assert.Equal(t, 10000, cfg.Extract.FlushThreshold, "unset keys keep defaults")
	assert.Equal(t, int64(3), cfg.Aggregate.MinSupport)
	assert.Equal(t, assoc.DiceMetric, cfg.Score.Metric)
	assert.Equal(t, []assoc.Metric{assoc.DiceMetric, assoc.PMIMetric, assoc.MI}, cfg.Score.Metrics)
	assert.True(t, cfg.Score.EmitUnigrams)
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, 16, cfg.Run.Partitions)
	assert.Equal(t, "out.db", cfg.Output.DB)
}

func TestLoadRejectsUnknownNames(t *testing.T) {
	_, err := Load(writeFile(t, "mode.yaml", "extract:\n  window_mode: PARAGRAPH\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "metric.yaml", "score:\n  metric: tfidf\n"))
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "extract:\n  window_size: 0\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = Load(writeFile(t, "parts.yaml", "run:\n  partitions: 0\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoaderAllEmpty(t *testing.T) {
	loader := Loader{}
	comp, err := loader.Load()
	require.NoError(t, err)

	require.NotNil(t, comp.Tokenizer)
	assert.Equal(t, extract.DefaultConfig(), comp.Runner.Extract)
	assert.Equal(t, int64(2), comp.Runner.Aggregate.MinSupport)
	assert.Equal(t, int64(-1), comp.Score.Total, "total is injected after pass 1")
	assert.Equal(t, assoc.LLR, comp.Score.Metric)
}

func TestLoaderStoplist(t *testing.T) {
	stop := writeFile(t, "stoplist.yaml", "terms:\n  - the\n  - of\n")
	loader := Loader{StoplistPath: stop}
	comp, err := loader.Load()
	require.NoError(t, err)

	assert.True(t, comp.Tokenizer.IsStopword("the"))
	assert.True(t, comp.Tokenizer.IsStopword("of"))
	assert.False(t, comp.Tokenizer.IsStopword("cat"))
}

func TestLoaderStopwordOverrides(t *testing.T) {
	stop := writeFile(t, "stoplist.yaml", "terms:\n  - the\n  - of\n")
	job := writeFile(t, "job.yaml", "extract:\n  stopwords_add: [Cat, dog]\n  stopwords_remove: [of, dog]\n")
	loader := Loader{ConfigPath: job, StoplistPath: stop}
	comp, err := loader.Load()
	require.NoError(t, err)

	assert.True(t, comp.Tokenizer.IsStopword("the"))
	assert.True(t, comp.Tokenizer.IsStopword("cat"), "added words are normalized")
	assert.False(t, comp.Tokenizer.IsStopword("of"))
	assert.False(t, comp.Tokenizer.IsStopword("dog"), "removal wins over addition")

	doc := comp.Tokenizer.Document("d", "the cat of Paris")
	var texts []string
	for _, tok := range doc.Tokens {
		texts = append(texts, tok.Text)
	}
	assert.NotContains(t, texts, "cat")
	assert.Contains(t, texts, "paris")
}

func TestLoaderNonExistentStoplist(t *testing.T) {
	loader := Loader{StoplistPath: "/nonexistent/stoplist.yaml"}
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoaderNonExistentConfig(t *testing.T) {
	loader := Loader{ConfigPath: "/nonexistent/job.yaml"}
	_, err := loader.Load()
	assert.Error(t, err)
}
