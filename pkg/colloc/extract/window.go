package extract

import (
	"fmt"
	"strings"
)

// WindowMode selects the span of tokens within which pairs are generated.
type WindowMode int

const (
	// WholeDocument treats the whole document as one window.
	WholeDocument WindowMode = iota
	// Sentence makes every sentence a window.
	Sentence
	// CWindow cuts the document into consecutive blocks of Size tokens.
	CWindow
	// SWindow slides a Size-token window inside each sentence.
	SWindow
	// Fixed slides a Size-token window over the whole document.
	Fixed
)

var windowNames = [...]string{
	WholeDocument: "DOCUMENT",
	Sentence:      "SENTENCE",
	CWindow:       "C_WINDOW",
	SWindow:       "S_WINDOW",
	Fixed:         "FIXED",
}

func (m WindowMode) String() string {
	if m < 0 || int(m) >= len(windowNames) {
		return fmt.Sprintf("WindowMode(%d)", int(m))
	}
	return windowNames[m]
}

// ParseWindowMode resolves a mode name, case-insensitively.
func ParseWindowMode(s string) (WindowMode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range windowNames {
		if n == name {
			return WindowMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown window mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m WindowMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *WindowMode) UnmarshalText(b []byte) error {
	v, err := ParseWindowMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// span is a run of token positions [start, end) paired with a radius.
// A negative radius pairs every position with every other; radius r >= 0
// pairs a position only with positions at distance 1..r.
type span struct {
	start, end int
	radius     int
}

const unbounded = -1

// spans cuts a document into windows according to the mode. sentences
// holds the start offset of every sentence, in order, beginning with 0.
func spans(mode WindowMode, size, n int, sentences []int) []span {
	if n == 0 {
		return nil
	}
	switch mode {
	case WholeDocument:
		return []span{{0, n, unbounded}}
	case Fixed:
		return []span{{0, n, size - 1}}
	case CWindow:
		out := make([]span, 0, n/size+1)
		for start := 0; start < n; start += size {
			end := start + size
			if end > n {
				end = n
			}
			out = append(out, span{start, end, unbounded})
		}
		return out
	}

	radius := unbounded
	if mode == SWindow {
		radius = size - 1
	}
	out := make([]span, 0, len(sentences))
	for i, start := range sentences {
		end := n
		if i+1 < len(sentences) {
			end = sentences[i+1]
		}
		if end > start {
			out = append(out, span{start, end, radius})
		}
	}
	return out
}
