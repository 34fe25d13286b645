package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"microgpt/pkg/autograd"
)

// Matrix is a row-major grid of parameter leaves.
type Matrix [][]*autograd.Value

// Shape returns the number of rows and columns.
func (m Matrix) Shape() (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Floats copies the current data of m.
func (m Matrix) Floats() [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = autograd.Data(row)
	}
	return out
}

func newMatrix(nout, nin int, dist distuv.Normal) Matrix {
	m := make(Matrix, nout)
	for o := 0; o < nout; o++ {
		row := make([]*autograd.Value, nin)
		for i := 0; i < nin; i++ {
			row[i] = autograd.V(dist.Rand())
		}
		m[o] = row
	}
	return m
}

// Layer holds the weights of one transformer block.
type Layer struct {
	AttnWQ Matrix
	AttnWK Matrix
	AttnWV Matrix
	AttnWO Matrix
	MlpFC1 Matrix
	MlpFC2 Matrix
}

// NamedMatrix pairs a weight matrix with its state-dict key.
type NamedMatrix struct {
	Name   string
	Matrix Matrix
}

// ParameterStore owns every trainable leaf of the model. Leaves live as long
// as the store; per-step graphs only reference them.
type ParameterStore struct {
	VocabSize int
	Wte       Matrix // token embeddings [vocab, n_embd]
	Wpe       Matrix // position embeddings [block_size, n_embd]
	Layers    []Layer
	LmHead    Matrix // output projection [vocab, n_embd]

	params []*autograd.Value
}

// InitParameters validates cfg and then draws every weight from
// N(0, cfg.InitStd). Nothing is allocated when the config is rejected.
func InitParameters(vocabSize int, cfg Config, rng *rand.Rand) (*ParameterStore, error) {
	if err := cfg.Validate(vocabSize); err != nil {
		return nil, err
	}
	dist := distuv.Normal{Mu: 0, Sigma: cfg.InitStd, Src: rng}
	d := cfg.EmbeddingDim
	ps := &ParameterStore{
		VocabSize: vocabSize,
		Wte:       newMatrix(vocabSize, d, dist),
		Wpe:       newMatrix(cfg.BlockSize, d, dist),
		Layers:    make([]Layer, cfg.NumLayers),
	}
	for i := range ps.Layers {
		ps.Layers[i] = Layer{
			AttnWQ: newMatrix(d, d, dist),
			AttnWK: newMatrix(d, d, dist),
			AttnWV: newMatrix(d, d, dist),
			AttnWO: newMatrix(d, d, dist),
			MlpFC1: newMatrix(4*d, d, dist),
			MlpFC2: newMatrix(d, 4*d, dist),
		}
	}
	ps.LmHead = newMatrix(vocabSize, d, dist)
	return ps, nil
}

// Named lists the matrices in their fixed flattening order.
func (ps *ParameterStore) Named() []NamedMatrix {
	out := []NamedMatrix{
		{"wte", ps.Wte},
		{"wpe", ps.Wpe},
	}
	for i, l := range ps.Layers {
		out = append(out,
			NamedMatrix{fmt.Sprintf("layer%d.attn_wq", i), l.AttnWQ},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wk", i), l.AttnWK},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wv", i), l.AttnWV},
			NamedMatrix{fmt.Sprintf("layer%d.attn_wo", i), l.AttnWO},
			NamedMatrix{fmt.Sprintf("layer%d.mlp_fc1", i), l.MlpFC1},
			NamedMatrix{fmt.Sprintf("layer%d.mlp_fc2", i), l.MlpFC2},
		)
	}
	return append(out, NamedMatrix{"lm_head", ps.LmHead})
}

// Params returns every leaf flattened row-major in Named order. The slice is
// built once and reused, so indices stay aligned with optimizer moments.
func (ps *ParameterStore) Params() []*autograd.Value {
	if ps.params != nil {
		return ps.params
	}
	for _, nm := range ps.Named() {
		for _, row := range nm.Matrix {
			ps.params = append(ps.params, row...)
		}
	}
	return ps.params
}

func (ps *ParameterStore) NumParams() int {
	return len(ps.Params())
}

// ZeroGrad clears the gradient of every parameter.
func (ps *ParameterStore) ZeroGrad() {
	autograd.ZeroGrad(ps.Params())
}
