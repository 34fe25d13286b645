// Package tokenizer provides the character and BPE vocabularies used to turn
// documents into boundary-wrapped token id sequences.
package tokenizer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"microgpt/pkg/model"
)

const (
	ModeChar = "char"
	ModeBPE  = "bpe"

	DefaultEncoding = "cl100k_base"
)

// Char is a character-level vocabulary: one id per distinct rune in the
// corpus, sorted, plus BOS.
type Char struct {
	chars []rune
	stoi  map[rune]int
}

// NewChar collects the distinct runes of docs.
func NewChar(docs []string) *Char {
	charset := map[rune]bool{}
	for _, d := range docs {
		for _, r := range d {
			charset[r] = true
		}
	}
	uchars := make([]rune, 0, len(charset))
	for r := range charset {
		uchars = append(uchars, r)
	}
	slices.Sort(uchars)
	return NewCharFromRunes(uchars)
}

// NewCharFromRunes uses uchars as the vocabulary in the given order.
func NewCharFromRunes(uchars []rune) *Char {
	stoi := make(map[rune]int, len(uchars))
	for i, r := range uchars {
		stoi[r] = i
	}
	return &Char{chars: uchars, stoi: stoi}
}

func (c *Char) VocabSize() int { return len(c.chars) + 1 }
func (c *Char) BOS() int       { return len(c.chars) }

// Chars returns the vocabulary runes in id order.
func (c *Char) Chars() []rune { return c.chars }

// Encode wraps doc in BOS. Runes outside the vocabulary are skipped.
func (c *Char) Encode(doc string) []int {
	out := make([]int, 0, len(doc)+2)
	out = append(out, c.BOS())
	for _, r := range doc {
		if id, ok := c.stoi[r]; ok {
			out = append(out, id)
		}
	}
	return append(out, c.BOS())
}

// Decode renders BOS and unknown ids as empty.
func (c *Char) Decode(tokens []int) string {
	out := make([]rune, 0, len(tokens))
	for _, id := range tokens {
		if id >= 0 && id < len(c.chars) {
			out = append(out, c.chars[id])
		}
	}
	return string(out)
}

// Codec is the part of a BPE encoding the tokenizer uses.
type Codec interface {
	EncodeOrdinary(text string) []int
	Decode(tokens []int) string
}

// BPE maps a tiktoken encoding onto a small local vocabulary made of the
// most frequent BPE ids in the corpus, plus UNK and BOS.
type BPE struct {
	codec      Codec
	bpeToLocal map[int]int
	localToBPE []int
}

// NewBPE loads the named tiktoken encoding and keeps at most maxVocab ids.
func NewBPE(docs []string, encoding string, maxVocab int) (*BPE, error) {
	encoding = strings.TrimSpace(encoding)
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load bpe encoding %q: %w", encoding, err)
	}
	return NewBPEWithCodec(enc, docs, maxVocab)
}

// NewBPEWithCodec builds the local vocabulary over an already loaded codec.
func NewBPEWithCodec(codec Codec, docs []string, maxVocab int) (*BPE, error) {
	if maxVocab < 1 {
		return nil, fmt.Errorf("bpe vocab size must be positive, got %d", maxVocab)
	}
	counts := map[int]int{}
	for _, d := range docs {
		for _, id := range codec.EncodeOrdinary(d) {
			counts[id]++
		}
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(ids) > maxVocab {
		ids = ids[:maxVocab]
	}
	bpeToLocal := make(map[int]int, len(ids))
	for i, id := range ids {
		bpeToLocal[id] = i
	}
	return &BPE{codec: codec, bpeToLocal: bpeToLocal, localToBPE: ids}, nil
}

func (b *BPE) VocabSize() int { return len(b.localToBPE) + 2 }
func (b *BPE) UNK() int       { return len(b.localToBPE) }
func (b *BPE) BOS() int       { return len(b.localToBPE) + 1 }

// Encode wraps doc in BOS. BPE ids outside the local vocabulary become UNK.
func (b *BPE) Encode(doc string) []int {
	raw := b.codec.EncodeOrdinary(doc)
	out := make([]int, 0, len(raw)+2)
	out = append(out, b.BOS())
	for _, id := range raw {
		if local, ok := b.bpeToLocal[id]; ok {
			out = append(out, local)
		} else {
			out = append(out, b.UNK())
		}
	}
	return append(out, b.BOS())
}

// Decode drops BOS and UNK and decodes the rest through the codec.
func (b *BPE) Decode(tokens []int) string {
	raw := make([]int, 0, len(tokens))
	for _, local := range tokens {
		if local >= 0 && local < len(b.localToBPE) {
			raw = append(raw, b.localToBPE[local])
		}
	}
	return b.codec.Decode(raw)
}

// FromDocs builds the tokenizer named by mode over docs.
func FromDocs(mode string, docs []string, encoding string, maxVocab int) (model.Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeChar:
		if len(docs) == 0 {
			return nil, fmt.Errorf("char tokenizer needs at least one document")
		}
		return NewChar(docs), nil
	case ModeBPE:
		tok, err := NewBPE(docs, encoding, maxVocab)
		if err != nil {
			return nil, err
		}
		return tok, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer mode %q: use %s or %s", mode, ModeChar, ModeBPE)
	}
}
