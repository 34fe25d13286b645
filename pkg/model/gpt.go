package model

import (
	"fmt"
	"math"

	"microgpt/pkg/autograd"
)

const rmsEps = 1e-5

// KVCache holds the keys and values produced so far for one sequence,
// indexed [layer][position][n_embd]. It grows by one position per Forward
// call and is discarded when the sequence ends.
type KVCache struct {
	Keys   [][][]*autograd.Value
	Values [][][]*autograd.Value
}

func NewKVCache(numLayers int) *KVCache {
	return &KVCache{
		Keys:   make([][][]*autograd.Value, numLayers),
		Values: make([][][]*autograd.Value, numLayers),
	}
}

// Len is the number of positions already cached.
func (c *KVCache) Len() int {
	if len(c.Keys) == 0 {
		return 0
	}
	return len(c.Keys[0])
}

// GPT is the forward model over a parameter store.
type GPT struct {
	Params *ParameterStore
	Config Config
}

// NewGPT pairs params with the config they were built from.
func NewGPT(params *ParameterStore, cfg Config) *GPT {
	return &GPT{Params: params, Config: cfg}
}

// NewCache returns an empty cache sized for g.
func (g *GPT) NewCache() *KVCache {
	return NewKVCache(g.Config.NumLayers)
}

func linear(x []*autograd.Value, w Matrix) []*autograd.Value {
	out := make([]*autograd.Value, len(w))
	for o, row := range w {
		out[o] = autograd.Dot(row, x)
	}
	return out
}

func rmsnorm(x []*autograd.Value) []*autograd.Value {
	sq := make([]*autograd.Value, len(x))
	for i, xi := range x {
		sq[i] = autograd.Mul(xi, xi)
	}
	scale := autograd.Pow(autograd.AddConst(autograd.Mean(sq), rmsEps), -0.5)
	out := make([]*autograd.Value, len(x))
	for i, xi := range x {
		out[i] = autograd.Mul(xi, scale)
	}
	return out
}

func addVec(x, y []*autograd.Value) []*autograd.Value {
	out := make([]*autograd.Value, len(x))
	for i := range x {
		out[i] = autograd.Add(x[i], y[i])
	}
	return out
}

// Forward runs one position through the model and returns vocab-sized logits.
// Positions must be fed in order: the cache must hold exactly posID entries.
// Attention only reads what is already cached, so a position never sees the
// future.
func (g *GPT) Forward(tokenID, posID int, cache *KVCache) (logits []*autograd.Value, err error) {
	cfg := g.Config
	if tokenID < 0 || tokenID >= g.Params.VocabSize {
		return nil, fmt.Errorf("token id %d out of range [0,%d)", tokenID, g.Params.VocabSize)
	}
	if posID < 0 || posID >= cfg.BlockSize {
		return nil, fmt.Errorf("position %d out of range [0,%d)", posID, cfg.BlockSize)
	}
	if len(cache.Keys) != cfg.NumLayers {
		return nil, fmt.Errorf("cache has %d layers, model has %d", len(cache.Keys), cfg.NumLayers)
	}
	if n := cache.Len(); n != posID {
		return nil, fmt.Errorf("cache holds %d positions, cannot run position %d", n, posID)
	}
	err = autograd.Catch(func() {
		logits = g.forward(tokenID, posID, cache)
	})
	if err != nil {
		return nil, err
	}
	return logits, nil
}

func (g *GPT) forward(tokenID, posID int, cache *KVCache) []*autograd.Value {
	cfg := g.Config
	ps := g.Params
	headDim := cfg.HeadDim()
	scale := math.Sqrt(float64(headDim))

	tokEmb := ps.Wte[tokenID]
	posEmb := ps.Wpe[posID]
	x := addVec(tokEmb, posEmb)
	x = rmsnorm(x)

	for li, layer := range ps.Layers {
		xResidual := x
		x = rmsnorm(x)
		q := linear(x, layer.AttnWQ)
		k := linear(x, layer.AttnWK)
		v := linear(x, layer.AttnWV)
		cache.Keys[li] = append(cache.Keys[li], k)
		cache.Values[li] = append(cache.Values[li], v)
		keys, values := cache.Keys[li], cache.Values[li]

		xAttn := make([]*autograd.Value, 0, cfg.EmbeddingDim)
		for h := 0; h < cfg.NumHeads; h++ {
			hs := h * headDim
			qH := q[hs : hs+headDim]

			attnLogits := make([]*autograd.Value, len(keys))
			for t := range keys {
				attnLogits[t] = autograd.DivConst(autograd.Dot(qH, keys[t][hs:hs+headDim]), scale)
			}
			attnWeights := Softmax(attnLogits)

			for j := 0; j < headDim; j++ {
				terms := make([]*autograd.Value, len(values))
				for t := range values {
					terms[t] = autograd.Mul(attnWeights[t], values[t][hs+j])
				}
				xAttn = append(xAttn, autograd.Sum(terms))
			}
		}
		x = addVec(linear(xAttn, layer.AttnWO), xResidual)

		xResidual = x
		x = rmsnorm(x)
		x = linear(x, layer.MlpFC1)
		for i := range x {
			x[i] = autograd.ReLU(x[i])
		}
		x = addVec(linear(x, layer.MlpFC2), xResidual)
	}

	return linear(x, ps.LmHead)
}
