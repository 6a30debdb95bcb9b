package counters

import (
	"sort"
	"strings"
	"sync"
)

// Name identifies a job counter.
type Name string

// Counters surfaced by the extraction and scoring stages.
const (
	NgramTotal     Name = "NGRAM_TOTAL"
	Overflow       Name = "OVERFLOW"
	Flush          Name = "FLUSH"
	EmptyDoc       Name = "EMPTYDOC"
	Documents      Name = "DOCUMENTS"
	Sentences      Name = "SENTENCES"
	Tokens         Name = "TOKENS"
	Windows        Name = "WINDOWS"
	EmittedUnigram Name = "EMITTED_UNIGRAM"
	EmittedNgram   Name = "EMITTED_NGRAM"

	LessThanMinSupport Name = "LESS_THAN_MIN_SUPPORT"
	MalformedGroup     Name = "MALFORMED_GROUP"

	ExtraHead        Name = "EXTRA_HEAD"
	ExtraTail        Name = "EXTRA_TAIL"
	MissingHead      Name = "MISSING_HEAD"
	MissingTail      Name = "MISSING_TAIL"
	LessThanMinValue Name = "LESS_THAN_MIN_VALUE"
	ContingencyError Name = "CONTINGENCY_ERROR"

	LLRCalculationError  Name = "LLR_CALCULATION_ERROR"
	PMICalculationError  Name = "PMI_CALCULATION_ERROR"
	ChiCalculationError  Name = "CHI_CALCULATION_ERROR"
	DiceCalculationError Name = "DICE_CALCULATION_ERROR"
)

// CalculationError returns the error counter for the named metric,
// e.g. "llr" -> LLR_CALCULATION_ERROR.
func CalculationError(metric string) Name {
	return Name(strings.ToUpper(metric) + "_CALCULATION_ERROR")
}

// Counters is the sink every stage increments. Aggregation across workers
// is the caller's business.
type Counters interface {
	Inc(name Name, delta int64)
}

// Discard drops all increments.
var Discard Counters = discard{}

type discard struct{}

func (discard) Inc(Name, int64) {}

// Set is an in-memory Counters safe for concurrent use.
type Set struct {
	mu sync.Mutex
	m  map[Name]int64
}

// NewSet creates an empty counter set.
func NewSet() *Set {
	return &Set{m: make(map[Name]int64)}
}

// Inc implements Counters.
func (s *Set) Inc(name Name, delta int64) {
	s.mu.Lock()
	s.m[name] += delta
	s.mu.Unlock()
}

// Get returns the current value of a counter (0 if never incremented).
func (s *Set) Get(name Name) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[name]
}

// Merge adds every counter of other into s.
func (s *Set) Merge(other *Set) {
	if other == nil || other == s {
		return
	}
	snap := other.Snapshot()
	s.mu.Lock()
	for k, v := range snap {
		s.m[k] += v
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (s *Set) Snapshot() map[Name]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Name]int64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Names returns the incremented counter names in sorted order.
func (s *Set) Names() []Name {
	s.mu.Lock()
	names := make([]Name, 0, len(s.m))
	for k := range s.m {
		names = append(names, k)
	}
	s.mu.Unlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
