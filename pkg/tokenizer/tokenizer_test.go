package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestChar_Encode(t *testing.T) {
	tok := NewChar([]string{"ab", "ba", "abc"})
	if got := tok.VocabSize(); got != 4 {
		t.Fatalf("VocabSize() = %d, want 4", got)
	}
	if got := tok.BOS(); got != 3 {
		t.Fatalf("BOS() = %d, want 3", got)
	}

	tests := []struct {
		name string
		doc  string
		want []int
	}{
		{name: "simple", doc: "abc", want: []int{3, 0, 1, 2, 3}},
		{name: "empty", doc: "", want: []int{3, 3}},
		{name: "unknown skipped", doc: "azb", want: []int{3, 0, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tok.Encode(tt.doc); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode(%q) = %v, want %v", tt.doc, got, tt.want)
			}
		})
	}
}

func TestChar_RoundTrip(t *testing.T) {
	docs := []string{"emma", "olivia", "ava", "zoë", "🙂ok"}
	tok := NewChar(docs)
	for _, d := range docs {
		if got := tok.Decode(tok.Encode(d)); got != d {
			t.Errorf("Decode(Encode(%q)) = %q", d, got)
		}
	}
}

func TestChar_DecodeDropsBoundaryAndInvalidIDs(t *testing.T) {
	tok := NewChar([]string{"ab"})
	if got := tok.Decode([]int{tok.BOS(), 1, -1, 0, 99, tok.BOS()}); got != "ba" {
		t.Errorf("Decode() = %q, want %q", got, "ba")
	}
}

// wordCodec is a fake BPE codec: one id per space-separated word.
type wordCodec struct {
	ids   map[string]int
	words []string
}

func newWordCodec(words ...string) *wordCodec {
	c := &wordCodec{ids: map[string]int{}}
	for _, w := range words {
		c.ids[w] = 1000 + len(c.words)
		c.words = append(c.words, w)
	}
	return c
}

func (c *wordCodec) EncodeOrdinary(text string) []int {
	var out []int
	for _, w := range strings.Fields(text) {
		if id, ok := c.ids[w]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (c *wordCodec) Decode(tokens []int) string {
	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		parts = append(parts, c.words[id-1000])
	}
	return strings.Join(parts, " ")
}

func TestBPE_KeepsMostFrequent(t *testing.T) {
	codec := newWordCodec("the", "cat", "sat", "mat")
	docs := []string{"the cat sat", "the mat", "the cat"}
	tok, err := NewBPEWithCodec(codec, docs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := tok.VocabSize(); got != 4 {
		t.Fatalf("VocabSize() = %d, want 4", got)
	}
	// the(3) -> 0, cat(2) -> 1; sat and mat fall to UNK.
	want := []int{tok.BOS(), 0, 1, tok.UNK(), tok.BOS()}
	if got := tok.Encode("the cat sat"); !reflect.DeepEqual(got, want) {
		t.Errorf("Encode() = %v, want %v", got, want)
	}
	if got := tok.Decode(tok.Encode("the cat sat")); got != "the cat" {
		t.Errorf("Decode() = %q, want %q", got, "the cat")
	}
}

func TestBPE_RoundTripInVocabulary(t *testing.T) {
	codec := newWordCodec("a", "b", "c")
	tok, err := NewBPEWithCodec(codec, []string{"a b c"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := tok.Decode(tok.Encode("c a b")); got != "c a b" {
		t.Errorf("round trip = %q", got)
	}
}

func TestBPE_RejectsEmptyVocab(t *testing.T) {
	if _, err := NewBPEWithCodec(newWordCodec("a"), nil, 0); err == nil {
		t.Error("expected an error for maxVocab 0")
	}
}

func TestFromDocs(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		docs    []string
		wantErr bool
	}{
		{name: "char", mode: "char", docs: []string{"ab"}},
		{name: "default is char", mode: "", docs: []string{"ab"}},
		{name: "char without docs", mode: "char", wantErr: true},
		{name: "unknown mode", mode: "wordpiece", docs: []string{"ab"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocs(tt.mode, tt.docs, "", 16)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDocs() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
