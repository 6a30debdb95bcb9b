package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/store"
	"github.com/cognicore/colloc/pkg/colloc/store/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dbPath = flag.String("db", "colloc.db", "SQLite database written by colloc")
		runID  = flag.String("run", "", "Run id (default: latest finished run)")
		metric = flag.String("metric", "llr", "Metric stream to rank by")
		k      = flag.Int("k", 20, "Number of collocations to print")
		list   = flag.Bool("runs", false, "List runs and exit")
		tables = flag.Bool("tables", false, "Print the contingency table of each collocation")
	)
	flag.Parse()

	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, *dbPath)
	if err != nil {
		log.Printf("open db: %v", err)
		return 1
	}
	defer st.Close()

	if *list {
		if err := printRuns(ctx, st); err != nil {
			log.Printf("list runs: %v", err)
			return 1
		}
		return 0
	}

	id := *runID
	if id == "" {
		id, err = latestRun(ctx, st)
		if err != nil {
			log.Printf("find run: %v", err)
			return 1
		}
	}

	top, err := st.Top(ctx, id, *metric, *k)
	if err != nil {
		log.Printf("query top: %v", err)
		return 1
	}
	if len(top) == 0 {
		log.Printf("run %s has no %s scores", id, *metric)
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "#\tcollocation\t%s", *metric)
	if *tables {
		fmt.Fprint(w, "\tk11\tk12\tk21\tk22")
	}
	fmt.Fprintln(w)
	for i, sc := range top {
		fmt.Fprintf(w, "%d\t%s\t%.4f", i+1, display(sc.Text), sc.Value)
		if *tables {
			t, err := st.Contingency(ctx, id, sc.Text)
			if err != nil {
				log.Printf("contingency %q: %v", sc.Text, err)
				return 1
			}
			fmt.Fprintf(w, "\t%d\t%d\t%d\t%d", t.K11, t.K12, t.K21, t.K22)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		log.Printf("write: %v", err)
		return 1
	}
	return 0
}

// latestRun picks the newest run that completed.
func latestRun(ctx context.Context, st store.Store) (string, error) {
	runs, err := st.Runs(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		if r.Status == store.StatusDone {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("no finished run")
}

func printRuns(ctx context.Context, st store.Store) error {
	runs, err := st.Runs(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "run\tstarted\tstatus\tngram total\terror")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Total, r.Error)
	}
	return w.Flush()
}

func display(text string) string {
	return strings.ReplaceAll(text, gram.Separator, " ")
}
