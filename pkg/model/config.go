package model

import "fmt"

// Config holds the model hyperparameters.
type Config struct {
	EmbeddingDim int     `json:"n_embd"`
	NumHeads     int     `json:"n_head"`
	NumLayers    int     `json:"n_layer"`
	BlockSize    int     `json:"block_size"`
	InitStd      float64 `json:"init_std"`
}

// ConfigError reports an invalid model configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid model config: %s %s", e.Field, e.Reason)
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim: 16,
		NumHeads:     4,
		NumLayers:    1,
		BlockSize:    16,
		InitStd:      0.08,
	}
}

// Validate checks c against a vocabulary of vocabSize tokens.
func (c Config) Validate(vocabSize int) error {
	if vocabSize < 1 {
		return &ConfigError{Field: "vocab_size", Reason: fmt.Sprintf("must be positive, got %d", vocabSize)}
	}
	if c.EmbeddingDim < 1 {
		return &ConfigError{Field: "n_embd", Reason: fmt.Sprintf("must be positive, got %d", c.EmbeddingDim)}
	}
	if c.NumHeads < 1 {
		return &ConfigError{Field: "n_head", Reason: fmt.Sprintf("must be positive, got %d", c.NumHeads)}
	}
	if c.EmbeddingDim%c.NumHeads != 0 {
		return &ConfigError{Field: "n_embd", Reason: fmt.Sprintf("(%d) must be divisible by n_head (%d)", c.EmbeddingDim, c.NumHeads)}
	}
	if c.NumLayers < 1 {
		return &ConfigError{Field: "n_layer", Reason: fmt.Sprintf("must be positive, got %d", c.NumLayers)}
	}
	if c.BlockSize < 1 {
		return &ConfigError{Field: "block_size", Reason: fmt.Sprintf("must be positive, got %d", c.BlockSize)}
	}
	if c.InitStd < 0 {
		return &ConfigError{Field: "init_std", Reason: fmt.Sprintf("must not be negative, got %g", c.InitStd)}
	}
	return nil
}

// HeadDim is the width of one attention head.
func (c Config) HeadDim() int {
	return c.EmbeddingDim / c.NumHeads
}
