package optim

import (
	"math"
	"testing"

	"microgpt/pkg/autograd"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero lr", Config{LearningRate: 0, Beta1: 0.9, Beta2: 0.99, Eps: 1e-8}, true},
		{"beta1 one", Config{LearningRate: 0.1, Beta1: 1, Beta2: 0.99, Eps: 1e-8}, true},
		{"beta2 zero", Config{LearningRate: 0.1, Beta1: 0.9, Beta2: 0, Eps: 1e-8}, true},
		{"zero eps", Config{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.99, Eps: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFirstStepMovesByLearningRate(t *testing.T) {
	// On step 1 the bias-corrected moments are g and g^2, so each parameter
	// moves by lr * sign(g) (up to eps).
	cfg := DefaultConfig()
	params := []*autograd.Value{autograd.V(1), autograd.V(-2), autograd.V(0.5)}
	params[0].Grad = 3
	params[1].Grad = -0.25
	params[2].Grad = 0
	st := NewState(len(params))

	if err := Step(params, st, cfg); err != nil {
		t.Fatal(err)
	}
	want := []float64{1 - cfg.LearningRate, -2 + cfg.LearningRate, 0.5}
	for i, p := range params {
		if math.Abs(p.Data-want[i]) > 1e-6 {
			t.Errorf("param %d = %v, want %v", i, p.Data, want[i])
		}
		if p.Grad != 0 {
			t.Errorf("param %d grad = %v, want 0 after step", i, p.Grad)
		}
	}
}

func TestStepMatchesReferenceUpdate(t *testing.T) {
	cfg := Config{LearningRate: 0.05, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
	p := autograd.V(0.3)
	st := NewState(1)
	grads := []float64{0.5, -1.2, 0.7, 0.1}

	data, m, v := 0.3, 0.0, 0.0
	for t0, g := range grads {
		p.Grad = g
		if err := Step([]*autograd.Value{p}, st, cfg); err != nil {
			t.Fatal(err)
		}
		step := float64(t0 + 1)
		m = cfg.Beta1*m + (1-cfg.Beta1)*g
		v = cfg.Beta2*v + (1-cfg.Beta2)*g*g
		mHat := m / (1 - math.Pow(cfg.Beta1, step))
		vHat := v / (1 - math.Pow(cfg.Beta2, step))
		data -= cfg.LearningRate * mHat / (math.Sqrt(vHat) + cfg.Eps)
		if math.Abs(p.Data-data) > 1e-12 {
			t.Fatalf("step %d: data = %v, want %v", t0+1, p.Data, data)
		}
	}
}

func TestStepCounterAndBiasCorrection(t *testing.T) {
	cfg := DefaultConfig()
	params := []*autograd.Value{autograd.V(1)}
	st := NewState(1)
	prev1, prev2 := 0.0, 0.0
	for n := 1; n <= 50; n++ {
		params[0].Grad = 0.1
		if err := Step(params, st, cfg); err != nil {
			t.Fatal(err)
		}
		if st.T != n {
			t.Fatalf("T = %d after %d steps", st.T, n)
		}
		c1 := BiasCorrection(cfg.Beta1, st.T)
		c2 := BiasCorrection(cfg.Beta2, st.T)
		if !(c1 > prev1 && c2 > prev2) {
			t.Errorf("step %d: bias corrections %v, %v did not increase", n, c1, c2)
		}
		if c1 >= 1 || c2 >= 1 {
			t.Errorf("step %d: bias corrections reached 1", n)
		}
		prev1, prev2 = c1, c2
	}
}

func TestStepRejectsMisalignedState(t *testing.T) {
	st := NewState(2)
	if err := Step([]*autograd.Value{autograd.V(1)}, st, DefaultConfig()); err == nil {
		t.Error("expected an error for a parameter count mismatch")
	}
	if st.T != 0 {
		t.Errorf("T = %d, step counted despite the error", st.T)
	}
}

func TestStepLROverridesRate(t *testing.T) {
	cfg := DefaultConfig()
	p := autograd.V(0)
	p.Grad = 1
	if err := StepLR([]*autograd.Value{p}, NewState(1), cfg, 0.5); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Data+0.5) > 1e-6 {
		t.Errorf("data = %v, want -0.5", p.Data)
	}
}
