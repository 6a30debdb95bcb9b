package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/colloc/pkg/colloc/aggregate"
	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
	"github.com/cognicore/colloc/pkg/colloc/runner"
	"github.com/cognicore/colloc/pkg/colloc/score"
)

// Config is the job file.
type Config struct {
	Extract   Extract   `yaml:"extract"`
	Aggregate Aggregate `yaml:"aggregate"`
	Score     Score     `yaml:"score"`
	Run       Run       `yaml:"run"`
	Output    Output    `yaml:"output"`
}

// Extract configures the map stage.
type Extract struct {
	WindowMode        extract.WindowMode `yaml:"window_mode"`
	WindowSize        int                `yaml:"window_size"`
	FlushThreshold    int                `yaml:"flush_threshold"`
	MaxPairsPerAnchor int                `yaml:"max_pairs_per_anchor"`
	// Stoplist points to a YAML file with a terms list.
	Stoplist string `yaml:"stoplist"`
	// StopwordsAdd and StopwordsRemove adjust the loaded list, removals last.
	StopwordsAdd    []string `yaml:"stopwords_add,omitempty"`
	StopwordsRemove []string `yaml:"stopwords_remove,omitempty"`
}

// Aggregate configures pass 1.
type Aggregate struct {
	MinSupport int64 `yaml:"min_support"`
}

// Score configures pass 2.
type Score struct {
	Metric       assoc.Metric   `yaml:"metric"`
	MinValue     float64        `yaml:"min_value"`
	Metrics      []assoc.Metric `yaml:"metrics"`
	EmitUnigrams bool           `yaml:"emit_unigrams"`
}

// Run configures the local runner.
type Run struct {
	Workers    int `yaml:"workers"`
	Partitions int `yaml:"partitions"`
}

// Output names where results go. Either may be empty.
type Output struct {
	DB  string `yaml:"db"`
	Dir string `yaml:"dir"`
}

// Default returns the reference job configuration.
func Default() *Config {
	ex := extract.DefaultConfig()
	return &Config{
		Extract: Extract{
			WindowMode:        ex.Mode,
			WindowSize:        ex.WindowSize,
			FlushThreshold:    ex.FlushThreshold,
			MaxPairsPerAnchor: ex.MaxPairsPerAnchor,
		},
		Aggregate: Aggregate{MinSupport: aggregate.DefaultMinSupport},
		Score: Score{
			Metric:   assoc.LLR,
			MinValue: score.DefaultMinValue,
			Metrics:  append([]assoc.Metric(nil), assoc.Core...),
		},
		Run: Run{Partitions: runner.DefaultPartitions},
	}
}

// Load reads a job file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ExtractConfig().Validate(); err != nil {
		return err
	}
	if c.Aggregate.MinSupport < 0 {
		return fmt.Errorf("%w: aggregate.min_support must not be negative", internalerr.ErrInvalidConfig)
	}
	if !c.Score.Metric.Valid() {
		return fmt.Errorf("%w: score.metric %d", internalerr.ErrInvalidConfig, int(c.Score.Metric))
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("%w: run.workers must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Run.Partitions < 1 {
		return fmt.Errorf("%w: run.partitions must be positive", internalerr.ErrInvalidConfig)
	}
	return nil
}

// ExtractConfig returns the extractor settings.
func (c *Config) ExtractConfig() extract.Config {
	return extract.Config{
		Mode:              c.Extract.WindowMode,
		WindowSize:        c.Extract.WindowSize,
		FlushThreshold:    c.Extract.FlushThreshold,
		MaxPairsPerAnchor: c.Extract.MaxPairsPerAnchor,
	}
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
