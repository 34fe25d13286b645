package model

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"microgpt/pkg/autograd"
)

// Tokenizer is what generation and training need from a vocabulary.
// Encode wraps a document in BOS on both sides; Decode renders BOS as empty.
type Tokenizer interface {
	VocabSize() int
	BOS() int
	Encode(doc string) []int
	Decode(tokens []int) string
}

// SamplingOptions controls autoregressive generation.
type SamplingOptions struct {
	Temperature       float64
	MaxTokens         int     // <= 0 means up to the block size
	TopK              int     // <= 0 disables
	TopP              float64 // outside (0,1) disables
	RepetitionPenalty float64 // <= 1 disables
	RepeatLastN       int
	Prompt            string
}

func DefaultSamplingOptions() SamplingOptions {
	return SamplingOptions{
		Temperature: 0.5,
		RepeatLastN: 64,
	}
}

// SampleWeighted draws an index with probability proportional to its weight
// using a cumulative-sum search over one uniform draw. Zero-weight entries are
// never drawn unless every weight is zero.
func SampleWeighted(weights []float64, rng *rand.Rand) int {
	if len(weights) == 0 {
		return -1
	}
	cum := floats.CumSum(make([]float64, len(weights)), weights)
	r := rng.Float64() * cum[len(cum)-1]
	if i := sort.Search(len(cum), func(i int) bool { return cum[i] > r }); i < len(cum) {
		return i
	}
	i := len(weights) - 1
	for i > 0 && weights[i] == 0 {
		i--
	}
	return i
}

// NextTokenWeights turns logits into a sampling distribution: repetition
// penalty on recently emitted tokens, temperature, softmax, then optional
// top-k and top-p truncation. A non-positive temperature is a domain error.
func NextTokenWeights(logits []*autograd.Value, opts SamplingOptions, recent map[int]bool) ([]float64, error) {
	if !(opts.Temperature > 0) {
		return nil, &autograd.DomainError{Op: "temperature", Operand: opts.Temperature}
	}
	l := autograd.Data(logits)
	if len(l) == 0 {
		return nil, nil
	}
	for i := range l {
		if opts.RepetitionPenalty > 1 && recent[i] {
			if l[i] >= 0 {
				l[i] /= opts.RepetitionPenalty
			} else {
				l[i] *= opts.RepetitionPenalty
			}
		}
	}
	scaled := make([]float64, len(l))
	floats.ScaleTo(scaled, 1/opts.Temperature, l)
	if !allFinite(scaled) {
		// Temperature small enough to overflow the logits: greedy.
		w := make([]float64, len(l))
		w[floats.MaxIdx(l)] = 1
		return w, nil
	}
	w := SoftmaxFloat(scaled)
	if opts.TopK > 0 {
		w = ApplyTopK(w, opts.TopK)
	}
	if opts.TopP > 0 && opts.TopP < 1 {
		w = ApplyTopP(w, opts.TopP)
	}
	return w, nil
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

type indexedWeight struct {
	i int
	w float64
}

func sortedByWeight(weights []float64) []indexedWeight {
	arr := make([]indexedWeight, len(weights))
	for i, w := range weights {
		arr[i] = indexedWeight{i, w}
	}
	sort.SliceStable(arr, func(i, j int) bool { return arr[i].w > arr[j].w })
	return arr
}

// ApplyTopK zeroes every weight outside the k largest.
func ApplyTopK(weights []float64, k int) []float64 {
	if k >= len(weights) {
		return weights
	}
	out := make([]float64, len(weights))
	for _, kv := range sortedByWeight(weights)[:k] {
		out[kv.i] = kv.w
	}
	return out
}

// ApplyTopP keeps the smallest set of largest weights whose mass reaches p.
func ApplyTopP(weights []float64, p float64) []float64 {
	out := make([]float64, len(weights))
	sum := 0.0
	for _, kv := range sortedByWeight(weights) {
		sum += kv.w
		out[kv.i] = kv.w
		if sum >= p {
			break
		}
	}
	return out
}

// Sample generates token ids after an optional prompt, starting from bos.
// It stops when bos is drawn again, after maxTokens ids, or at the block
// size. Neither bos nor the prompt appear in the result.
func (g *GPT) Sample(bos int, prompt []int, opts SamplingOptions, rng *rand.Rand) ([]int, error) {
	blockSize := g.Config.BlockSize
	if len(prompt) > blockSize-1 {
		prompt = prompt[len(prompt)-(blockSize-1):]
	}
	maxNew := opts.MaxTokens
	if maxNew <= 0 {
		maxNew = blockSize
	}

	cache := g.NewCache()
	tokenID := bos
	pos := 0
	for _, next := range prompt {
		if _, err := g.Forward(tokenID, pos, cache); err != nil {
			return nil, err
		}
		tokenID = next
		pos++
	}

	out := make([]int, 0, min(maxNew, blockSize))
	var recent []int
	for pos < blockSize && len(out) < maxNew {
		logits, err := g.Forward(tokenID, pos, cache)
		if err != nil {
			return out, err
		}
		recentSet := make(map[int]bool, len(recent))
		for _, id := range recent {
			recentSet[id] = true
		}
		weights, err := NextTokenWeights(logits, opts, recentSet)
		if err != nil {
			return out, err
		}
		tokenID = SampleWeighted(weights, rng)
		if tokenID == bos {
			break
		}
		out = append(out, tokenID)
		if opts.RepeatLastN > 0 {
			recent = append(recent, tokenID)
			if len(recent) > opts.RepeatLastN {
				recent = recent[len(recent)-opts.RepeatLastN:]
			}
		}
		pos++
	}
	return out, nil
}

// Generate samples one sequence and decodes it. The prompt, if any, is
// encoded with tok and used to prefill the cache. Parameters and their
// gradients are left untouched.
func Generate(g *GPT, tok Tokenizer, opts SamplingOptions, rng *rand.Rand) (string, error) {
	bos := tok.BOS()
	var prompt []int
	if opts.Prompt != "" {
		for _, id := range tok.Encode(opts.Prompt) {
			if id != bos {
				prompt = append(prompt, id)
			}
		}
	}
	ids, err := g.Sample(bos, prompt, opts, rng)
	if err != nil {
		return "", err
	}
	return tok.Decode(ids), nil
}
