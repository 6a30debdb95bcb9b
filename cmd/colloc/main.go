package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/cognicore/colloc/internal/corpus"
	"github.com/cognicore/colloc/pkg/colloc"
	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/config"
	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/store"
	"github.com/cognicore/colloc/pkg/colloc/store/sqlite"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred closes run before the process exits.
func run() int {
	var (
		input        = flag.String("input", "", "Path to JSONL corpus, - for stdin (required)")
		configPath   = flag.String("config", "", "Job YAML file")
		stoplistPath = flag.String("stoplist", "", "Stoplist YAML file")
		dbPath       = flag.String("db", "", "SQLite database for results")
		outDir       = flag.String("out", "", "Directory for text output streams")
		windowMode   = flag.String("window-mode", "", "DOCUMENT, SENTENCE, C_WINDOW, S_WINDOW or FIXED")
		windowSize   = flag.Int("window-size", 0, "Window size for C_WINDOW, S_WINDOW and FIXED")
		minSupport   = flag.Int64("min-support", 0, "Minimum n-gram and sub-gram frequency")
		minValue     = flag.Float64("min-value", 0, "Minimum value of the gate metric")
		metric       = flag.String("metric", "", "Gate metric (llr, pmi, chi, dice, mi, gmean, ms, odds)")
		metrics      = flag.String("metrics", "", "Comma-separated metrics to write")
		unigrams     = flag.Bool("unigrams", false, "Write unigram frequencies")
		workers      = flag.Int("workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
		partitions   = flag.Int("partitions", 0, "Reduce partitions")
		quiet        = flag.Bool("quiet", false, "Disable the progress bar")
		dumpPass1    = flag.Bool("dump-pass1", false, "Write the pass-1 dataset to the --out directory")
	)
	flag.Parse()

	if *input == "" {
		log.Print("--input required")
		return 1
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Printf("load config: %v", err)
			return 1
		}
	}
	if *stoplistPath != "" {
		cfg.Extract.Stoplist = *stoplistPath
	}

	// Flags override the job file only when given.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		if flagErr != nil {
			return
		}
		switch f.Name {
		case "window-mode":
			cfg.Extract.WindowMode, flagErr = extract.ParseWindowMode(*windowMode)
		case "window-size":
			cfg.Extract.WindowSize = *windowSize
		case "min-support":
			cfg.Aggregate.MinSupport = *minSupport
		case "min-value":
			cfg.Score.MinValue = *minValue
		case "metric":
			cfg.Score.Metric, flagErr = assoc.ParseMetric(*metric)
		case "metrics":
			cfg.Score.Metrics, flagErr = assoc.ParseMetrics(strings.Split(*metrics, ","))
		case "unigrams":
			cfg.Score.EmitUnigrams = *unigrams
		case "workers":
			cfg.Run.Workers = *workers
		case "partitions":
			cfg.Run.Partitions = *partitions
		case "db":
			cfg.Output.DB = *dbPath
		case "out":
			cfg.Output.Dir = *outDir
		}
	})
	if flagErr != nil {
		log.Printf("flags: %v", flagErr)
		return 1
	}
	if cfg.Output.DB == "" && cfg.Output.Dir == "" {
		log.Print("--db or --out required")
		return 1
	}

	comp, err := config.Build(cfg, nil)
	if err != nil {
		log.Printf("build components: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := colloc.Options{Components: comp, DumpPass1: *dumpPass1}
	if cfg.Output.DB != "" {
		st, err := sqlite.OpenSQLite(ctx, cfg.Output.DB)
		if err != nil {
			log.Printf("open db: %v", err)
			return 1
		}
		defer st.Close()
		opts.Store = st
	}
	if cfg.Output.Dir != "" {
		fs, err := outputFS(cfg.Output.Dir)
		if err != nil {
			log.Printf("open output dir: %v", err)
			return 1
		}
		opts.Output = fs
	}

	job, err := colloc.New(opts)
	if err != nil {
		log.Printf("create job: %v", err)
		return 1
	}

	r, size, closeInput, err := openInput(*input)
	if err != nil {
		log.Printf("open input: %v", err)
		return 1
	}
	defer closeInput()

	var bar *pb.ProgressBar
	if !*quiet {
		bar = pb.New64(size)
		bar.SetUnits(pb.U_BYTES)
		bar.Output = os.Stderr
		bar.Start()
		r = bar.NewProxyReader(r)
	}

	docs := make(chan extract.Document, 64)
	streamErr := make(chan error, 1)
	go func() {
		defer close(docs)
		streamErr <- corpus.Stream(ctx, r, filepath.Base(*input), comp.Tokenizer, docs)
	}()

	res, err := job.Run(ctx, docs)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Printf("run: %v", err)
		return 1
	}
	if err := <-streamErr; err != nil {
		log.Printf("read corpus: %v", err)
		return 1
	}

	printResult(os.Stdout, res, opts.Store)
	return 0
}

// openInput returns the corpus reader and its size in bytes, 0 when unknown.
func openInput(path string) (io.Reader, int64, func(), error) {
	if path == "-" {
		return os.Stdin, 0, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, err
	}
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return f, size, func() { f.Close() }, nil
}

// outputFS roots a hackpadfs OS filesystem at dir.
func outputFS(dir string) (hackpadfs.FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	rel := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	if rel == "" {
		rel = "."
	}
	return osfs.NewFS().Sub(rel)
}

func printResult(w io.Writer, res *colloc.Result, st store.Store) {
	fmt.Fprintf(w, "run %s: %d ngrams counted, %d emitted in %s\n", res.RunID, res.Total, res.Emitted, res.Duration)
	if st != nil {
		fmt.Fprintf(w, "query with: colloc-top --run %s\n", res.RunID)
	}
	names := make([]string, 0, len(res.Counters))
	for name := range res.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %d\n", name, res.Counters[name])
	}
}
