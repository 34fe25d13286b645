// Package optim implements the Adam update rule over a flat parameter list.
package optim

import (
	"fmt"
	"math"

	"microgpt/pkg/autograd"
)

// Config holds the Adam hyperparameters.
type Config struct {
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	Eps          float64 `json:"eps"`
}

func DefaultConfig() Config {
	return Config{
		LearningRate: 0.01,
		Beta1:        0.85,
		Beta2:        0.99,
		Eps:          1e-8,
	}
}

func (c Config) Validate() error {
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if !(c.Beta1 > 0 && c.Beta1 < 1) {
		return fmt.Errorf("beta1 must be in (0,1), got %g", c.Beta1)
	}
	if !(c.Beta2 > 0 && c.Beta2 < 1) {
		return fmt.Errorf("beta2 must be in (0,1), got %g", c.Beta2)
	}
	if !(c.Eps > 0) {
		return fmt.Errorf("eps must be positive, got %g", c.Eps)
	}
	return nil
}

// State holds the first and second moment of every parameter, indexed like
// the flattened parameter list, and the number of steps taken.
type State struct {
	M []float64
	V []float64
	T int
}

// NewState returns zeroed moments for n parameters.
func NewState(n int) *State {
	return &State{
		M: make([]float64, n),
		V: make([]float64, n),
	}
}

// BiasCorrection is the Adam denominator 1 - beta^t.
func BiasCorrection(beta float64, t int) float64 {
	return 1 - math.Pow(beta, float64(t))
}

// Step applies one bias-corrected Adam update to every parameter using its
// Grad, then zeroes the grad. params must be in the same order on every call.
func Step(params []*autograd.Value, st *State, cfg Config) error {
	return StepLR(params, st, cfg, cfg.LearningRate)
}

// StepLR is Step with the learning rate overridden, for schedules.
func StepLR(params []*autograd.Value, st *State, cfg Config, lr float64) error {
	if len(params) != len(st.M) || len(params) != len(st.V) {
		return fmt.Errorf("optimizer state holds %d moments, got %d params", len(st.M), len(params))
	}
	st.T++
	c1 := BiasCorrection(cfg.Beta1, st.T)
	c2 := BiasCorrection(cfg.Beta2, st.T)
	for i, p := range params {
		g := p.Grad
		st.M[i] = cfg.Beta1*st.M[i] + (1-cfg.Beta1)*g
		st.V[i] = cfg.Beta2*st.V[i] + (1-cfg.Beta2)*g*g
		mHat := st.M[i] / c1
		vHat := st.V[i] / c2
		p.Data -= lr * mHat / (math.Sqrt(vHat) + cfg.Eps)
		p.Grad = 0
	}
	return nil
}
