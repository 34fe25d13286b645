package model

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"microgpt/pkg/autograd"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func tinyConfig() Config {
	return Config{EmbeddingDim: 4, NumHeads: 2, NumLayers: 2, BlockSize: 6, InitStd: 0.5}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		vocabSize int
		field     string
	}{
		{name: "default", mutate: func(*Config) {}, vocabSize: 27},
		{name: "indivisible heads", mutate: func(c *Config) { c.EmbeddingDim, c.NumHeads = 7, 2 }, vocabSize: 27, field: "n_embd"},
		{name: "zero vocab", mutate: func(*Config) {}, vocabSize: 0, field: "vocab_size"},
		{name: "negative vocab", mutate: func(*Config) {}, vocabSize: -3, field: "vocab_size"},
		{name: "zero heads", mutate: func(c *Config) { c.NumHeads = 0 }, vocabSize: 27, field: "n_head"},
		{name: "zero layers", mutate: func(c *Config) { c.NumLayers = 0 }, vocabSize: 27, field: "n_layer"},
		{name: "zero block", mutate: func(c *Config) { c.BlockSize = 0 }, vocabSize: 27, field: "block_size"},
		{name: "negative std", mutate: func(c *Config) { c.InitStd = -1 }, vocabSize: 27, field: "init_std"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.vocabSize)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestInitParametersRejectsIndivisibleHeads(t *testing.T) {
	cfg := Config{EmbeddingDim: 7, NumHeads: 2, NumLayers: 1, BlockSize: 8, InitStd: 0.08}
	ps, err := InitParameters(3, cfg, testRNG(1))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("InitParameters() error = %v, want *ConfigError", err)
	}
	if ps != nil {
		t.Errorf("parameters allocated despite invalid config")
	}
}

func TestParameterStoreLayout(t *testing.T) {
	cfg := tinyConfig()
	vocab := 5
	ps, err := InitParameters(vocab, cfg, testRNG(2))
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.EmbeddingDim
	want := vocab*d + cfg.BlockSize*d + cfg.NumLayers*(4*d*d+2*4*d*d) + vocab*d
	if got := ps.NumParams(); got != want {
		t.Errorf("NumParams() = %d, want %d", got, want)
	}

	names := []string{}
	for _, nm := range ps.Named() {
		names = append(names, nm.Name)
	}
	wantNames := "wte wpe " +
		"layer0.attn_wq layer0.attn_wk layer0.attn_wv layer0.attn_wo layer0.mlp_fc1 layer0.mlp_fc2 " +
		"layer1.attn_wq layer1.attn_wk layer1.attn_wv layer1.attn_wo layer1.mlp_fc1 layer1.mlp_fc2 " +
		"lm_head"
	if got := strings.Join(names, " "); got != wantNames {
		t.Errorf("Named() order = %q", got)
	}

	shapes := map[string][2]int{
		"wte": {vocab, d}, "wpe": {cfg.BlockSize, d}, "lm_head": {vocab, d},
		"layer0.mlp_fc1": {4 * d, d}, "layer0.mlp_fc2": {d, 4 * d}, "layer1.attn_wo": {d, d},
	}
	for _, nm := range ps.Named() {
		want, ok := shapes[nm.Name]
		if !ok {
			continue
		}
		if r, c := nm.Matrix.Shape(); r != want[0] || c != want[1] {
			t.Errorf("%s shape = %dx%d, want %dx%d", nm.Name, r, c, want[0], want[1])
		}
	}

	first := ps.Params()
	second := ps.Params()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Params() order changed at %d", i)
		}
	}
	if first[0] != ps.Wte[0][0] || first[len(first)-1] != ps.LmHead[vocab-1][d-1] {
		t.Errorf("Params() does not start at wte and end at lm_head")
	}
}

func TestInitParametersIsDeterministicPerSeed(t *testing.T) {
	a, _ := InitParameters(4, tinyConfig(), testRNG(7))
	b, _ := InitParameters(4, tinyConfig(), testRNG(7))
	pa, pb := a.Params(), b.Params()
	for i := range pa {
		if pa[i].Data != pb[i].Data {
			t.Fatalf("param %d differs: %v vs %v", i, pa[i].Data, pb[i].Data)
		}
	}
}

func TestLossOfZeroModelIsLogVocab(t *testing.T) {
	cfg := tinyConfig()
	cfg.InitStd = 0
	vocab := 5
	ps, err := InitParameters(vocab, cfg, testRNG(3))
	if err != nil {
		t.Fatal(err)
	}
	loss, err := ForwardLoss(ps, cfg, []int{4, 0, 1, 2, 4})
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Log(float64(vocab)); math.Abs(loss.Data-want) > 1e-9 {
		t.Errorf("loss = %v, want %v", loss.Data, want)
	}
}

func TestLossGradientMatchesFiniteDifference(t *testing.T) {
	cfg := tinyConfig()
	vocab := 4
	ps, err := InitParameters(vocab, cfg, testRNG(4))
	if err != nil {
		t.Fatal(err)
	}
	tokens := []int{3, 0, 1, 2, 1, 3}
	g := NewGPT(ps, cfg)

	loss, err := g.Loss(tokens)
	if err != nil {
		t.Fatal(err)
	}
	autograd.Backward(loss)
	params := ps.Params()
	analytic := make([]float64, len(params))
	for i, p := range params {
		analytic[i] = p.Grad
	}
	ps.ZeroGrad()

	lossAt := func() float64 {
		l, err := g.Loss(tokens)
		if err != nil {
			t.Fatal(err)
		}
		return l.Data
	}

	const h = 1e-4
	rng := testRNG(5)
	for trial := 0; trial < 40; trial++ {
		i := rng.IntN(len(params))
		p := params[i]
		orig := p.Data
		p.Data = orig + h
		plus := lossAt()
		p.Data = orig - h
		minus := lossAt()
		p.Data = orig
		numeric := (plus - minus) / (2 * h)
		if math.Abs(analytic[i]-numeric) > 1e-6+1e-4*math.Abs(numeric) {
			t.Errorf("param %d: analytic %.9f, numeric %.9f", i, analytic[i], numeric)
		}
	}
}

func TestSharedEmbeddingRowAccumulatesGradient(t *testing.T) {
	cfg := tinyConfig()
	ps, err := InitParameters(3, cfg, testRNG(6))
	if err != nil {
		t.Fatal(err)
	}
	// Token 1 is read at two positions, so its embedding row receives
	// gradient from both.
	loss, err := ForwardLoss(ps, cfg, []int{2, 1, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	autograd.Backward(loss)
	nonZero := false
	for _, v := range ps.Wte[1] {
		if v.Grad != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Errorf("embedding row of a repeated token received no gradient")
	}
}

func TestSoftmaxInvariants(t *testing.T) {
	rng := testRNG(8)
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(10)
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = (rng.Float64()*2 - 1) * 10
		}
		shift := (rng.Float64()*2 - 1) * 100

		vals := make([]*autograd.Value, n)
		shifted := make([]*autograd.Value, n)
		for i, x := range xs {
			vals[i] = autograd.V(x)
			shifted[i] = autograd.V(x + shift)
		}
		probs := autograd.Data(Softmax(vals))
		probsShifted := autograd.Data(Softmax(shifted))
		probsFloat := SoftmaxFloat(xs)

		sum := 0.0
		for i, p := range probs {
			if !(p > 0 && p <= 1) {
				t.Errorf("prob %d = %v outside (0,1]", i, p)
			}
			if math.Abs(p-probsShifted[i]) > 1e-9 {
				t.Errorf("shift changed prob %d: %v vs %v", i, p, probsShifted[i])
			}
			if math.Abs(p-probsFloat[i]) > 1e-12 {
				t.Errorf("float softmax disagrees at %d: %v vs %v", i, p, probsFloat[i])
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("sum = %v, want 1", sum)
		}
	}
}

func TestSoftmaxIsStableForLargeLogits(t *testing.T) {
	probs := SoftmaxFloat([]float64{1000, 1000, -1000})
	if math.IsNaN(probs[0]) || math.Abs(probs[0]-0.5) > 1e-12 {
		t.Errorf("probs = %v", probs)
	}
}

func TestCausalAttention(t *testing.T) {
	cfg := tinyConfig()
	ps, err := InitParameters(4, cfg, testRNG(9))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGPT(ps, cfg)
	run := func(tokens []int) [][]float64 {
		cache := g.NewCache()
		var out [][]float64
		for pos, tok := range tokens {
			logits, err := g.Forward(tok, pos, cache)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, autograd.Data(logits))
		}
		return out
	}

	base := []int{3, 0, 1, 2, 0, 1}
	const i = 2
	ref := run(base)
	for _, repl := range []int{0, 1, 2, 3} {
		mutated := append([]int(nil), base...)
		for j := i + 1; j < len(mutated); j++ {
			mutated[j] = repl
		}
		got := run(mutated)
		for pos := 0; pos <= i; pos++ {
			for k := range ref[pos] {
				if got[pos][k] != ref[pos][k] {
					t.Fatalf("position %d logit %d changed after mutating the future", pos, k)
				}
			}
		}
	}
}

func TestForwardRejectsBadInputs(t *testing.T) {
	cfg := tinyConfig()
	ps, err := InitParameters(4, cfg, testRNG(10))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGPT(ps, cfg)

	tests := []struct {
		name    string
		tokenID int
		posID   int
		cache   *KVCache
	}{
		{"token too large", 4, 0, g.NewCache()},
		{"negative token", -1, 0, g.NewCache()},
		{"position past block", 0, cfg.BlockSize, g.NewCache()},
		{"skipped position", 0, 1, g.NewCache()},
		{"wrong layer count", 0, 0, NewKVCache(cfg.NumLayers + 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Forward(tt.tokenID, tt.posID, tt.cache); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLossTruncatesToBlockSize(t *testing.T) {
	cfg := tinyConfig()
	ps, err := InitParameters(4, cfg, testRNG(11))
	if err != nil {
		t.Fatal(err)
	}
	long := make([]int, 3*cfg.BlockSize)
	for i := range long {
		long[i] = i % 4
	}
	if _, err := ForwardLoss(ps, cfg, long); err != nil {
		t.Errorf("long sequence: %v", err)
	}
	if _, err := ForwardLoss(ps, cfg, []int{1}); err == nil {
		t.Error("single token: expected an error")
	}
}

func TestLossSurfacesDomainError(t *testing.T) {
	cfg := Config{EmbeddingDim: 4, NumHeads: 1, NumLayers: 1, BlockSize: 4, InitStd: 0}
	ps, err := InitParameters(2, cfg, testRNG(12))
	if err != nil {
		t.Fatal(err)
	}
	// With zero layer weights the final hidden state is rmsnorm(wte[0]) ~ 1,
	// so a hugely negative head row drives p(1) to exactly zero.
	for j := range ps.Wte[0] {
		ps.Wte[0][j].Data = 1
		ps.LmHead[1][j].Data = -1e4
	}
	_, err = ForwardLoss(ps, cfg, []int{0, 1})
	var de *autograd.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("ForwardLoss() error = %v, want *autograd.DomainError", err)
	}
	if de.Op != "log" {
		t.Errorf("Op = %q, want log", de.Op)
	}
}
