// Package extract is the map stage of the collocation job: it turns one
// document's token stream into unigram and bigram candidates and emits them
// keyed for the sub-gram grouping of pass 1.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
)

// Defaults for Config.
const (
	DefaultWindowSize        = 3
	DefaultFlushThreshold    = 10000
	DefaultMaxPairsPerAnchor = 1000
)

// punctuation matches tokens that contain quote, symbol or separator
// characters.
var punctuation = regexp.MustCompile(`["'#§$%&:+!,-]`)

// Token is one normalized token of the input stream.
type Token struct {
	Text string
	// SentenceStart marks the first token of a sentence. The first token
	// of a document always starts a sentence.
	SentenceStart bool
}

// Document is one unit of map input. Err carries a decode failure from the
// upstream annotator; such documents are counted and skipped.
type Document struct {
	ID     string
	Tokens []Token
	Err    error
}

// Config controls windowing and the two safety valves.
type Config struct {
	Mode       WindowMode
	WindowSize int
	// FlushThreshold bounds the candidates accumulated in memory; crossing
	// it flushes the count maps downstream.
	FlushThreshold int
	// MaxPairsPerAnchor caps the pairs generated for one anchor token in
	// one window.
	MaxPairsPerAnchor int
}

// DefaultConfig returns sentence windows with the reference limits.
func DefaultConfig() Config {
	return Config{
		Mode:              Sentence,
		WindowSize:        DefaultWindowSize,
		FlushThreshold:    DefaultFlushThreshold,
		MaxPairsPerAnchor: DefaultMaxPairsPerAnchor,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Mode < WholeDocument || c.Mode > Fixed {
		return fmt.Errorf("%w: window mode %d", internalerr.ErrInvalidConfig, int(c.Mode))
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size must be positive, got %d", internalerr.ErrInvalidConfig, c.WindowSize)
	}
	if c.FlushThreshold < 1 {
		return fmt.Errorf("%w: flush threshold must be positive, got %d", internalerr.ErrInvalidConfig, c.FlushThreshold)
	}
	if c.MaxPairsPerAnchor < 1 {
		return fmt.Errorf("%w: per-anchor cap must be positive, got %d", internalerr.ErrInvalidConfig, c.MaxPairsPerAnchor)
	}
	return nil
}

// Emitter receives the keyed records of a flush.
type Emitter func(gram.Record)

// Extractor generates candidates for one worker. It is not safe for
// concurrent use; give every worker its own Extractor.
type Extractor struct {
	cfg   Config
	emit  Emitter
	count counters.Counters

	ngrams   map[string]int64
	unigrams map[string]int64
	pending  int
}

// New creates an Extractor. A nil Counters discards increments.
func New(cfg Config, emit Emitter, c counters.Counters) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emit == nil {
		return nil, fmt.Errorf("%w: nil emitter", internalerr.ErrInvalidConfig)
	}
	if c == nil {
		c = counters.Discard
	}
	e := &Extractor{cfg: cfg, emit: emit, count: c}
	e.reset()
	return e, nil
}

// IsValid reports whether a normalized token may take part in a candidate:
// longer than one rune, free of punctuation and symbol characters, not made
// of punctuation/symbols only, and without "..". Text holding the gram
// separator is rejected as well.
func IsValid(text string) bool {
	if utf8.RuneCountInString(text) <= 1 {
		return false
	}
	if punctuation.MatchString(text) || strings.Contains(text, "..") || strings.Contains(text, gram.Separator) {
		return false
	}
	for _, r := range text {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}

// Extract processes one document and flushes everything it counted.
func (e *Extractor) Extract(doc Document) {
	e.count.Inc(counters.Documents, 1)
	if doc.Err != nil || len(doc.Tokens) == 0 {
		e.count.Inc(counters.EmptyDoc, 1)
		return
	}

	texts := make([]string, len(doc.Tokens))
	valid := make([]bool, len(doc.Tokens))
	sentences := []int{0}
	for i, tok := range doc.Tokens {
		texts[i] = strings.ToLower(tok.Text)
		valid[i] = IsValid(texts[i])
		if i > 0 && tok.SentenceStart {
			sentences = append(sentences, i)
		}
	}
	e.count.Inc(counters.Tokens, int64(len(texts)))
	e.count.Inc(counters.Sentences, int64(len(sentences)))

	for _, w := range spans(e.cfg.Mode, e.cfg.WindowSize, len(texts), sentences) {
		e.count.Inc(counters.Windows, 1)
		e.collect(w, texts, valid)
	}
	e.Flush()
}

// collect counts the unigrams and ordered pairs of one window.
func (e *Extractor) collect(w span, texts []string, valid []bool) {
	for i := w.start; i < w.end; i++ {
		if !valid[i] {
			continue
		}
		anchor := texts[i]
		e.unigrams[anchor]++

		lo, hi := w.start, w.end
		if w.radius >= 0 {
			lo = max(w.start, i-w.radius)
			hi = min(w.end, i+w.radius+1)
		}

		pairs := 0
		for j := lo; j < hi; j++ {
			if !valid[j] || texts[j] == anchor {
				continue
			}
			if pairs >= e.cfg.MaxPairsPerAnchor {
				e.count.Inc(counters.Overflow, 1)
				break
			}
			pairs++
			e.ngrams[gram.Join(anchor, texts[j])]++
			e.pending++
			if e.pending > e.cfg.FlushThreshold {
				e.count.Inc(counters.Flush, 1)
				e.Flush()
			}
		}
	}
}

// Flush emits the accumulated counts and starts fresh maps. For every
// n-gram "head\ttail" with count f it emits the head total, the head link,
// the tail total and the tail link; for every unigram its total.
func (e *Extractor) Flush() {
	var total int64
	for _, text := range sortedKeys(e.ngrams) {
		f := e.ngrams[text]
		h, t, ok := gram.Split(text)
		if !ok {
			continue
		}
		ngram := gram.New(text, f, gram.Ngram)
		head := gram.New(h, f, gram.Head)
		tail := gram.New(t, f, gram.Tail)

		e.emit(gram.Record{Key: gram.TotalKey(head), Value: head})
		e.emit(gram.Record{Key: gram.LinkKey(head, ngram), Value: ngram})
		e.emit(gram.Record{Key: gram.TotalKey(tail), Value: tail})
		e.emit(gram.Record{Key: gram.LinkKey(tail, ngram), Value: ngram})
		total += f
	}
	for _, text := range sortedKeys(e.unigrams) {
		u := gram.New(text, e.unigrams[text], gram.Unigram)
		e.emit(gram.Record{Key: gram.TotalKey(u), Value: u})
	}
	if total > 0 {
		e.count.Inc(counters.NgramTotal, total)
	}
	e.reset()
}

func (e *Extractor) reset() {
	e.ngrams = make(map[string]int64)
	e.unigrams = make(map[string]int64)
	e.pending = 0
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
