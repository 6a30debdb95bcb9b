// Package aggregate is the pass-1 reducer. It receives one sub-gram group
// (the sub-gram's own total followed by its n-gram links) and republishes
// every surviving link keyed by the n-gram, carrying the sub-gram total.
package aggregate

import (
	"bytes"
	"fmt"
	"log"

	"github.com/cognicore/colloc/pkg/colloc/counters"
	"github.com/cognicore/colloc/pkg/colloc/gram"
	"github.com/cognicore/colloc/pkg/colloc/internalerr"
)

// DefaultMinSupport is the minimum frequency a sub-gram, link or unigram
// must reach to survive pass 1.
const DefaultMinSupport = 2

// Options configure an Aggregator.
type Options struct {
	MinSupport int64
	// Logger receives warnings about malformed groups. Nil uses log.Default().
	Logger *log.Logger
}

// DefaultOptions returns the reference minimum support.
func DefaultOptions() Options {
	return Options{MinSupport: DefaultMinSupport}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.MinSupport < 0 {
		return fmt.Errorf("%w: min support must not be negative, got %d", internalerr.ErrInvalidConfig, o.MinSupport)
	}
	return nil
}

// Aggregator reduces sorted pass-1 groups. One Aggregator serves one
// partition; it keeps no state between groups.
type Aggregator struct {
	minSupport int64
	count      counters.Counters
	log        *log.Logger
}

// New creates an Aggregator. A nil Counters discards increments.
func New(opts Options, c counters.Counters) (*Aggregator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = counters.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{minSupport: opts.MinSupport, count: c, log: logger}, nil
}

// Reduce processes one group, sorted by gram.Compare and sharing a primary
// identity. Leading total records are summed; links to the same n-gram are
// summed; each surviving link is emitted as ngram -> sub-gram total.
func (a *Aggregator) Reduce(group []gram.Record, emit func(gram.Pair)) {
	if len(group) == 0 {
		return
	}
	primary := group[0].Key.Primary

	i := 0
	var total int64
	for ; i < len(group) && group[i].Key.IsTotal(); i++ {
		total += group[i].Value.Frequency
	}
	if i == 0 {
		a.count.Inc(counters.MalformedGroup, 1)
		a.log.Printf("aggregate: group %s has no total record, skipping", group[0].Key)
		return
	}

	switch primary.Type {
	case gram.Unigram:
		if i != len(group) {
			a.count.Inc(counters.MalformedGroup, 1)
			a.log.Printf("aggregate: unigram %q carries links, skipping", primary.Text)
			return
		}
		if total < a.minSupport {
			a.count.Inc(counters.LessThanMinSupport, 1)
			return
		}
		u := gram.New(primary.Text, total, gram.Unigram)
		emit(gram.Pair{Key: u, Value: u})
		return
	case gram.Head, gram.Tail:
	default:
		a.count.Inc(counters.MalformedGroup, 1)
		a.log.Printf("aggregate: unexpected primary %s, skipping", group[0].Key)
		return
	}

	if total < a.minSupport {
		a.count.Inc(counters.LessThanMinSupport, 1)
		return
	}
	sub := gram.New(primary.Text, total, primary.Type)

	for i < len(group) {
		link := group[i].Key.Secondary
		ngram := group[i].Value
		ngram.Frequency = 0
		j := i
		for ; j < len(group) && bytes.Equal(group[j].Key.Secondary, link); j++ {
			ngram.Frequency += group[j].Value.Frequency
		}
		i = j

		if ngram.Type != gram.Ngram {
			a.count.Inc(counters.MalformedGroup, 1)
			a.log.Printf("aggregate: link %s does not carry an n-gram, skipping", group[j-1].Key)
			continue
		}
		if ngram.Frequency < a.minSupport {
			a.count.Inc(counters.LessThanMinSupport, 1)
			continue
		}
		emit(gram.Pair{Key: ngram, Value: sub})
	}
}
