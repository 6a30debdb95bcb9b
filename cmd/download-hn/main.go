package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb"

	"github.com/cognicore/colloc/internal/corpus"
)

// Hacker News API endpoint
const apiBase = "https://hacker-news.firebaseio.com/v0"

// HNItem represents a Hacker News story or comment
type HNItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Dead  bool   `json:"dead"`
}

type fetcher struct {
	client *http.Client
	base   string
}

func main() {
	var (
		count = flag.Int("count", 100, "Number of top stories to fetch")
		out   = flag.String("out", "testdata/hn/docs.jsonl", "Output JSONL corpus")
		delay = flag.Duration("delay", 50*time.Millisecond, "Pause between item requests")
	)
	flag.Parse()

	ctx := context.Background()
	f := fetcher{client: &http.Client{Timeout: 30 * time.Second}, base: apiBase}

	log.Printf("Downloading top %d Hacker News stories...", *count)
	ids, err := f.topStories(ctx)
	if err != nil {
		log.Fatalf("get top stories: %v", err)
	}
	if *count < len(ids) {
		ids = ids[:*count]
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}
	file, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output file: %v", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	bar := pb.New(len(ids))
	bar.Output = os.Stderr
	bar.Start()

	written := 0
	for _, id := range ids {
		bar.Increment()
		item, err := f.item(ctx, id)
		if err != nil {
			log.Printf("get item %d: %v", id, err)
			continue
		}
		rec, ok := toRecord(item)
		if !ok {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
		written++
		time.Sleep(*delay)
	}
	bar.Finish()

	log.Printf("Wrote %d stories to %s", written, *out)
}

// toRecord keeps live stories with a title. Story text stays HTML; the
// corpus reader strips it.
func toRecord(item *HNItem) (corpus.Record, bool) {
	if item.Type != "story" || item.Dead || item.Title == "" {
		return corpus.Record{}, false
	}
	return corpus.Record{
		ID:    fmt.Sprintf("hn:%d", item.ID),
		Title: item.Title,
		HTML:  item.Text,
	}, true
}

func (f fetcher) topStories(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := f.get(ctx, f.base+"/topstories.json", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (f fetcher) item(ctx context.Context, id int64) (*HNItem, error) {
	var item HNItem
	if err := f.get(ctx, fmt.Sprintf("%s/item/%d.json", f.base, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (f fetcher) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
