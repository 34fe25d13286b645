package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"microgpt/pkg/autograd"
)

// Softmax normalizes logits into probabilities. The maximum is read from
// Data and subtracted as a constant, so it takes no part in the gradient.
func Softmax(logits []*autograd.Value) []*autograd.Value {
	maxVal := math.Inf(-1)
	for _, l := range logits {
		maxVal = math.Max(maxVal, l.Data)
	}
	exps := make([]*autograd.Value, len(logits))
	for i, l := range logits {
		exps[i] = autograd.Exp(autograd.SubConst(l, maxVal))
	}
	total := autograd.Sum(exps)
	probs := make([]*autograd.Value, len(logits))
	for i := range exps {
		probs[i] = autograd.Div(exps[i], total)
	}
	return probs
}

// SoftmaxFloat is Softmax on plain numbers, used when no gradient is needed.
func SoftmaxFloat(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := floats.Max(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// Loss runs a boundary-wrapped token sequence through a fresh cache and
// returns the mean next-token cross-entropy. Sequences longer than the block
// size are truncated. The returned node roots a new graph over g's
// parameters.
func (g *GPT) Loss(tokens []int) (*autograd.Value, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("loss needs at least 2 tokens, got %d", len(tokens))
	}
	n := min(len(tokens)-1, g.Config.BlockSize)

	cache := g.NewCache()
	losses := make([]*autograd.Value, 0, n)
	for posID := 0; posID < n; posID++ {
		tokenID, targetID := tokens[posID], tokens[posID+1]
		if targetID < 0 || targetID >= g.Params.VocabSize {
			return nil, fmt.Errorf("target id %d out of range [0,%d)", targetID, g.Params.VocabSize)
		}
		logits, err := g.Forward(tokenID, posID, cache)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", posID, err)
		}
		var lossT *autograd.Value
		if err := autograd.Catch(func() {
			probs := Softmax(logits)
			lossT = autograd.Neg(autograd.Log(probs[targetID]))
		}); err != nil {
			return nil, fmt.Errorf("position %d: %w", posID, err)
		}
		losses = append(losses, lossT)
	}
	return autograd.Mean(losses), nil
}

// ForwardLoss builds the loss graph of tokens under params and cfg.
func ForwardLoss(params *ParameterStore, cfg Config, tokens []int) (*autograd.Value, error) {
	return NewGPT(params, cfg).Loss(tokens)
}
