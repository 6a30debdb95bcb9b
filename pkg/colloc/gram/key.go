package gram

import (
	"bytes"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is the composite sort/group key of pass 1. Primary is the grouping
// identity; Secondary is empty for the primary gram's own total and holds
// the Identity of an n-gram for a link record.
type Key struct {
	Primary   Gram
	Secondary []byte
}

// TotalKey keys the own-total record of g. Keys carry identities only;
// the primary's frequency is zeroed.
func TotalKey(g Gram) Key {
	return Key{Primary: Gram{Text: g.Text, Type: g.Type}}
}

// LinkKey keys the record linking sub-gram sub to ngram.
func LinkKey(sub, ngram Gram) Key {
	return Key{Primary: Gram{Text: sub.Text, Type: sub.Type}, Secondary: ngram.Identity()}
}

// IsTotal reports whether the key carries no secondary component.
func (k Key) IsTotal() bool {
	return len(k.Secondary) == 0
}

// Linked decodes the n-gram identity of a link key.
func (k Key) Linked() (Gram, error) {
	return ParseIdentity(k.Secondary)
}

func (k Key) String() string {
	if k.IsTotal() {
		return k.Primary.Type.String() + "'" + k.Primary.Text + "'"
	}
	var sb strings.Builder
	sb.WriteString(k.Primary.Type.String())
	sb.WriteString("'")
	sb.WriteString(k.Primary.Text)
	sb.WriteString("'->")
	if g, err := k.Linked(); err == nil {
		sb.WriteString(g.Type.String())
		sb.WriteString("'")
		sb.WriteString(g.Text)
		sb.WriteString("'")
	} else {
		sb.WriteString("?")
	}
	return sb.String()
}

// ComparePrimary orders two grams by (type, text).
func ComparePrimary(a, b Gram) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Text, b.Text)
}

// Compare is the full sort order: primary identity, then the empty
// secondary before any non-empty secondary, then secondary bytes.
func Compare(a, b Key) int {
	if c := ComparePrimary(a.Primary, b.Primary); c != 0 {
		return c
	}
	switch {
	case a.IsTotal() && b.IsTotal():
		return 0
	case a.IsTotal():
		return -1
	case b.IsTotal():
		return 1
	}
	return bytes.Compare(a.Secondary, b.Secondary)
}

// GroupEqual reports whether two keys belong to the same reduce group:
// the primary identity alone decides.
func GroupEqual(a, b Key) bool {
	return a.Primary.SameIdentity(b.Primary)
}

// Partition maps a key to one of n shards using only the primary identity,
// so every record of a sub-gram reaches the same worker.
func Partition(k Key, n int) int {
	return PartitionGram(k.Primary, n)
}

// PartitionGram maps a gram identity to one of n shards.
func PartitionGram(g Gram, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64(g.Identity()) % uint64(n))
}
