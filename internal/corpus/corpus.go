package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cognicore/colloc/pkg/colloc/extract"
	"github.com/cognicore/colloc/pkg/colloc/ingest"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
)

// maxLine bounds one JSONL record.
const maxLine = 64 << 20

// Record is one corpus document as stored in JSONL
type Record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
	// Err is set for lines that failed to decode.
	Err error `json:"-"`
}

// Body returns the plain text of the record: the title followed by the
// text, or by the stripped HTML when no text is present.
func (r Record) Body() string {
	body := r.Text
	if strings.TrimSpace(body) == "" && r.HTML != "" {
		body = ingest.StripHTML(r.HTML)
	}
	if r.Title == "" {
		return body
	}
	return r.Title + "\n\n" + body
}

// Document tokenizes the record for the extractor. Decode failures are
// carried over so the extractor counts them.
func (r Record) Document(tok *ingest.Tokenizer) extract.Document {
	if r.Err != nil {
		return extract.Document{ID: r.ID, Err: r.Err}
	}
	return tok.Document(r.ID, r.Body())
}

// Scan reads JSONL records from r and calls fn for each. Blank lines are
// skipped. A malformed line is logged and passed to fn with Err set; it
// does not stop the scan. Records without an id get "<name>:<line>".
func Scan(r io.Reader, name string, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			log.Printf("Warning: malformed JSON at line %d in %s: %v", line, name, err)
			rec = Record{Err: fmt.Errorf("%w: line %d: %w", internalerr.ErrInvalidInput, line, err)}
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("%s:%d", name, line)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// Stream scans r and sends every record as a tokenized document on out.
// It returns when the input is exhausted or ctx is done; out is not closed.
func Stream(ctx context.Context, r io.Reader, name string, tok *ingest.Tokenizer, out chan<- extract.Document) error {
	return Scan(r, name, func(rec Record) error {
		select {
		case out <- rec.Document(tok):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// LoadFromJSONL loads all well-formed records of a JSONL file
func LoadFromJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	err = Scan(f, path, func(rec Record) error {
		if rec.Err == nil {
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no valid records found in %s", internalerr.ErrEmptyDocument, path)
	}
	return records, nil
}
