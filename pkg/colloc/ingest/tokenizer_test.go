package ingest

import (
	"strings"
	"testing"
)

func texts(t *Tokenizer, s string) []string {
	var out []string
	for _, tok := range t.Tokenize(s) {
		out = append(out, tok.Text)
	}
	return out
}

func contains(list []string, w string) bool {
	for _, x := range list {
		if x == w {
			return true
		}
	}
	return false
}

func TestTokenizerSentences(t *testing.T) {
	tokenizer := NewTokenizer(nil)
	tokens := tokenizer.Tokenize("The quick brown fox. It jumps over the dog!")

	var starts []string
	for _, tok := range tokens {
		if tok.SentenceStart {
			starts = append(starts, tok.Text)
		}
	}
	if len(starts) != 2 || starts[0] != "the" || starts[1] != "it" {
		t.Errorf("sentence starts = %v, want [the it]", starts)
	}
	if !tokens[0].SentenceStart {
		t.Error("first token must start a sentence")
	}
}

func TestTokenizerDropsWhitespace(t *testing.T) {
	tokenizer := NewTokenizer(nil)
	for _, w := range texts(tokenizer, "  new \t york\n\ncity ") {
		if strings.TrimSpace(w) == "" {
			t.Errorf("whitespace token %q", w)
		}
	}
}

func TestTokenizerCaseNormalization(t *testing.T) {
	tokenizer := NewTokenizer(nil)
	words := texts(tokenizer, "BERT Transformer ＡＢＣ ﬁne")

	for _, want := range []string{"bert", "transformer", "abc", "fine"} {
		if !contains(words, want) {
			t.Errorf("missing %q in %v", want, words)
		}
	}
}

func TestTokenizerKeepsPunctuation(t *testing.T) {
	tokenizer := NewTokenizer(nil)
	words := texts(tokenizer, "Iwo Jima, 1945.")
	if !contains(words, ",") {
		t.Errorf("punctuation should reach the extractor, got %v", words)
	}
}

func TestAddRemoveStopword(t *testing.T) {
	tokenizer := NewTokenizer([]string{"The"})

	if got := texts(tokenizer, "the cat"); len(got) != 1 || got[0] != "cat" {
		t.Errorf("Should filter 'the', got %v", got)
	}

	tokenizer.RemoveStopword("the")
	if got := texts(tokenizer, "the cat"); len(got) != 2 {
		t.Errorf("'the' should not be filtered after removal, got %v", got)
	}

	tokenizer.AddStopword("CAT")
	if got := texts(tokenizer, "the cat"); contains(got, "cat") {
		t.Errorf("'cat' should be filtered after adding, got %v", got)
	}
}

func TestStopwordKeepsSentenceStart(t *testing.T) {
	tokenizer := NewTokenizer([]string{"the"})
	tokens := tokenizer.Tokenize("The cat sat.")
	if len(tokens) == 0 || tokens[0].Text != "cat" || !tokens[0].SentenceStart {
		t.Errorf("first kept token should start the sentence: %+v", tokens)
	}
}

func TestDocumentEmpty(t *testing.T) {
	doc := NewTokenizer(nil).Document("blank", " \n\t ")
	if doc.ID != "blank" || len(doc.Tokens) != 0 {
		t.Errorf("blank text should yield no tokens: %+v", doc)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<html><head><style>p{color:red}</style></head><body>` +
		`<h1>Iwo Jima</h1><p>The <b>battle</b> began.</p><script>var x = 1;</script></body></html>`
	out := StripHTML(in)

	if strings.Contains(out, "color") || strings.Contains(out, "var x") {
		t.Errorf("script/style leaked: %q", out)
	}
	if !strings.Contains(out, "The battle began.") {
		t.Errorf("inline markup should be flattened: %q", out)
	}
	if !strings.Contains(out, "Iwo Jima\n\n") {
		t.Errorf("block elements should be separated: %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("output should be trimmed: %q", out)
	}
}
