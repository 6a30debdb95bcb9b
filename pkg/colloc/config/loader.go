package config

import (
	"fmt"
	"log"

	"github.com/cognicore/colloc/pkg/colloc/aggregate"
	"github.com/cognicore/colloc/pkg/colloc/ingest"
	"github.com/cognicore/colloc/pkg/colloc/runner"
	"github.com/cognicore/colloc/pkg/colloc/score"
)

// Loader loads the job file and constructs components
type Loader struct {
	// ConfigPath is optional; an empty path uses Default().
	ConfigPath string
	// StoplistPath overrides extract.stoplist when set.
	StoplistPath string
	Logger       *log.Logger
}

// Components holds the ready-to-use settings of one job
type Components struct {
	Config    *Config
	Tokenizer *ingest.Tokenizer
	Runner    runner.Options
	Score     score.Options
}

// Load reads the configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		var err error
		cfg, err = Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if l.StoplistPath != "" {
		cfg.Extract.Stoplist = l.StoplistPath
	}
	return Build(cfg, l.Logger)
}

// Build constructs components from an already loaded configuration.
func Build(cfg *Config, logger *log.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	comp := &Components{Config: cfg}

	// Load stoplist
	if cfg.Extract.Stoplist != "" {
		stoplist, err := LoadStoplist(cfg.Extract.Stoplist)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Tokenizer = ingest.NewTokenizer(stoplist.Terms)
	} else {
		comp.Tokenizer = ingest.NewTokenizer(nil)
	}
	for _, w := range cfg.Extract.StopwordsAdd {
		comp.Tokenizer.AddStopword(w)
	}
	for _, w := range cfg.Extract.StopwordsRemove {
		comp.Tokenizer.RemoveStopword(w)
	}

	comp.Runner = runner.Options{
		Workers:    cfg.Run.Workers,
		Partitions: cfg.Run.Partitions,
		Extract:    cfg.ExtractConfig(),
		Aggregate:  aggregate.Options{MinSupport: cfg.Aggregate.MinSupport, Logger: logger},
		Logger:     logger,
	}

	comp.Score = score.DefaultOptions()
	comp.Score.Metric = cfg.Score.Metric
	comp.Score.MinValue = cfg.Score.MinValue
	comp.Score.Metrics = cfg.Score.Metrics
	comp.Score.EmitUnigrams = cfg.Score.EmitUnigrams
	comp.Score.Logger = logger
	return comp, nil
}
