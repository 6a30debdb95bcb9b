// Package ingest turns raw text into the token streams the extractor
// consumes: NFKC normalization, lower-casing, UAX#29 sentence and word
// segmentation, and an optional stopword list.
package ingest

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/colloc/pkg/colloc/extract"
)

// Tokenizer handles text segmentation and normalization
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a new tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[Normalize(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// Normalize applies NFKC and lower-cases the result.
func Normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Tokenize splits text into sentences and words. Whitespace segments and
// stopwords are dropped; punctuation segments are kept for the extractor's
// validity filter to judge. The first token of every sentence has
// SentenceStart set.
func (t *Tokenizer) Tokenize(text string) []extract.Token {
	var tokens []extract.Token
	// Sentence boundaries depend on case, so lower-casing happens per word.
	sents := sentences.FromString(norm.NFKC.String(text))
	for sents.Next() {
		start := true
		ws := words.FromString(sents.Value())
		for ws.Next() {
			w := strings.ToLower(ws.Value())
			if isSpace(w) || t.IsStopword(w) {
				continue
			}
			tokens = append(tokens, extract.Token{Text: w, SentenceStart: start})
			start = false
		}
	}
	return tokens
}

// Document tokenizes text into an extractor document.
func (t *Tokenizer) Document(id, text string) extract.Document {
	return extract.Document{ID: id, Tokens: t.Tokenize(text)}
}

// IsStopword reports whether a normalized word is on the stoplist.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// AddStopword adds a word to the stopword list
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[Normalize(word)] = struct{}{}
}

// RemoveStopword removes a word from the stopword list
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, Normalize(word))
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
