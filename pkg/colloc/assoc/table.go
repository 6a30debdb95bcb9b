package assoc

import (
	"errors"
	"fmt"
)

// ErrNegativeCell is returned when the marginals handed to NewTable are
// inconsistent with the joint count or the corpus total.
var ErrNegativeCell = errors.New("negative contingency cell")

// Table is the 2x2 contingency table of a head/tail pair.
//
//	          tail   !tail
//	head      K11    K12
//	!head     K21    K22
type Table struct {
	K11, K12, K21, K22 int64
}

// NewTable builds the table of an n-gram from its joint frequency, the
// head and tail sub-gram totals and the corpus total:
//
//   - K11 = ngram
//   - K12 = head - ngram
//   - K21 = tail - ngram
//   - K22 = total - (head + tail - ngram)
func NewTable(ngram, head, tail, total int64) (Table, error) {
	t := Table{
		K11: ngram,
		K12: head - ngram,
		K21: tail - ngram,
		K22: total - (head + tail - ngram),
	}
	if !t.Valid() {
		return t, fmt.Errorf("%w: %s (ngram=%d head=%d tail=%d total=%d)",
			ErrNegativeCell, t, ngram, head, tail, total)
	}
	return t, nil
}

// Valid reports whether every cell is non-negative.
func (t Table) Valid() bool {
	return t.K11 >= 0 && t.K12 >= 0 && t.K21 >= 0 && t.K22 >= 0
}

// N is the table total.
func (t Table) N() int64 {
	return t.K11 + t.K12 + t.K21 + t.K22
}

// String renders the cells tab-separated, the format of the contingency
// output stream.
func (t Table) String() string {
	return fmt.Sprintf("%d\t%d\t%d\t%d", t.K11, t.K12, t.K21, t.K22)
}

// expected holds the marginals and expected cell values under independence.
type expected struct {
	r1, r2, c1, c2, n  float64
	e11, e12, e21, e22 float64
}

func (t Table) expected() expected {
	o11, o12, o21, o22 := float64(t.K11), float64(t.K12), float64(t.K21), float64(t.K22)
	e := expected{
		r1: o11 + o12,
		r2: o21 + o22,
		c1: o11 + o21,
		c2: o12 + o22,
	}
	e.n = e.r1 + e.r2
	e.e11 = e.r1 * e.c1 / e.n
	e.e12 = e.r1 * e.c2 / e.n
	e.e21 = e.r2 * e.c1 / e.n
	e.e22 = e.r2 * e.c2 / e.n
	return e
}
