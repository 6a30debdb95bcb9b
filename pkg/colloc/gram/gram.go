// Package gram holds the counted units of the collocation job and the
// composite key used to group them between stages.
package gram

import (
	"fmt"
	"strings"
)

// Type tags what a Gram counts. The byte values define the sort order of
// primary keys: HEAD < TAIL < UNIGRAM < NGRAM.
type Type byte

const (
	Head Type = iota
	Tail
	Unigram
	Ngram
)

func (t Type) String() string {
	switch t {
	case Head:
		return "HEAD"
	case Tail:
		return "TAIL"
	case Unigram:
		return "UNIGRAM"
	case Ngram:
		return "NGRAM"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// Valid reports whether t is one of the four known types.
func (t Type) Valid() bool {
	return t <= Ngram
}

// Separator joins the tokens of a multi-token gram.
const Separator = "\t"

// Gram is a counted unigram, sub-gram or n-gram.
type Gram struct {
	Text      string
	Frequency int64
	Type      Type
}

// New creates a Gram.
func New(text string, frequency int64, typ Type) Gram {
	return Gram{Text: text, Frequency: frequency, Type: typ}
}

// Join builds the text of an n-gram from its tokens.
func Join(tokens ...string) string {
	return strings.Join(tokens, Separator)
}

// Split decomposes an n-gram text into its head (leading n-1 tokens) and
// tail (trailing token). ok is false for single-token text.
func Split(text string) (head, tail string, ok bool) {
	i := strings.LastIndex(text, Separator)
	if i < 0 {
		return "", "", false
	}
	return text[:i], text[i+len(Separator):], true
}

// Identity returns the byte encoding of (type, text): one type byte
// followed by the UTF-8 text. Frequency is not part of the identity.
func (g Gram) Identity() []byte {
	b := make([]byte, 0, 1+len(g.Text))
	b = append(b, byte(g.Type))
	return append(b, g.Text...)
}

// SameIdentity reports whether g and o share (text, type).
func (g Gram) SameIdentity(o Gram) bool {
	return g.Type == o.Type && g.Text == o.Text
}

// Merge returns g with o's frequency added. Both must share an identity.
func (g Gram) Merge(o Gram) (Gram, error) {
	if !g.SameIdentity(o) {
		return g, fmt.Errorf("merge %s with %s: identity mismatch", g, o)
	}
	g.Frequency += o.Frequency
	return g, nil
}

// ParseIdentity decodes the output of Identity. The frequency of the
// returned Gram is zero.
func ParseIdentity(b []byte) (Gram, error) {
	if len(b) == 0 {
		return Gram{}, fmt.Errorf("empty gram identity")
	}
	t := Type(b[0])
	if !t.Valid() {
		return Gram{}, fmt.Errorf("unknown gram type %d", b[0])
	}
	return Gram{Text: string(b[1:]), Type: t}, nil
}

func (g Gram) String() string {
	return fmt.Sprintf("%s'%s':%d", g.Type, strings.ReplaceAll(g.Text, Separator, " "), g.Frequency)
}
