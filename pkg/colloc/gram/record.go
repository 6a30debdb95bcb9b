package gram

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Record is one map-stage output: a composite key and the counted gram.
type Record struct {
	Key   Key
	Value Gram
}

// Pair is one pass-1 output and pass-2 input: an n-gram (or unigram) key
// and one of its sub-gram totals (or the unigram itself).
type Pair struct {
	Key   Gram
	Value Gram
}

// Combine merges records sharing a Key by summing the value frequency.
// It is associative and commutative, so it may run any number of times on
// any subset of records. The result is sorted by Compare.
func Combine(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := identityKey(r.Key)
		if i, ok := index[k]; ok {
			out[i].Value.Frequency += r.Value.Frequency
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	SortRecords(out)
	return out
}

// SortRecords orders records by Compare; ties keep input order.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Compare(records[i].Key, records[j].Key) < 0
	})
}

// Groups splits sorted records into runs of GroupEqual keys.
func Groups(sorted []Record) [][]Record {
	var groups [][]Record
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || !GroupEqual(sorted[start].Key, sorted[i].Key) {
			groups = append(groups, sorted[start:i])
			start = i
		}
	}
	return groups
}

// SortPairs orders pass-1 output by key identity so that every pair of
// one n-gram is adjacent. Ties keep input order.
func SortPairs(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return ComparePrimary(pairs[i].Key, pairs[j].Key) < 0
	})
}

// PairGroups splits sorted pairs into runs sharing a key identity.
func PairGroups(sorted []Pair) [][]Pair {
	var groups [][]Pair
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || !sorted[start].Key.SameIdentity(sorted[i].Key) {
			groups = append(groups, sorted[start:i])
			start = i
		}
	}
	return groups
}

var errShortBuffer = errors.New("gram: short buffer")

// MarshalBinary encodes the pair for on-disk pass-1 datasets.
func (p Pair) MarshalBinary() ([]byte, error) {
	return appendGram(appendGram(nil, p.Key), p.Value), nil
}

// UnmarshalBinary decodes a pair produced by MarshalBinary.
func (p *Pair) UnmarshalBinary(data []byte) error {
	k, rest, err := readGram(data)
	if err != nil {
		return err
	}
	v, rest, err := readGram(rest)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("gram: %d trailing bytes", len(rest))
	}
	p.Key, p.Value = k, v
	return nil
}

// identityKey renders the (primary identity, secondary) pair as a map key.
func identityKey(k Key) string {
	id := k.Primary.Identity()
	b := binary.AppendUvarint(make([]byte, 0, len(id)+len(k.Secondary)+2), uint64(len(id)))
	b = append(b, id...)
	return string(append(b, k.Secondary...))
}

func appendGram(b []byte, g Gram) []byte {
	b = append(b, byte(g.Type))
	b = binary.AppendUvarint(b, uint64(len(g.Text)))
	b = append(b, g.Text...)
	return binary.AppendVarint(b, g.Frequency)
}

func readGram(b []byte) (Gram, []byte, error) {
	if len(b) == 0 {
		return Gram{}, nil, errShortBuffer
	}
	t := Type(b[0])
	if !t.Valid() {
		return Gram{}, nil, fmt.Errorf("gram: unknown type %d", b[0])
	}
	b = b[1:]
	n, size := binary.Uvarint(b)
	if size <= 0 || uint64(len(b)-size) < n {
		return Gram{}, nil, errShortBuffer
	}
	b = b[size:]
	text := string(b[:n])
	b = b[n:]
	freq, size := binary.Varint(b)
	if size <= 0 {
		return Gram{}, nil, errShortBuffer
	}
	return Gram{Text: text, Frequency: freq, Type: t}, b[size:], nil
}
