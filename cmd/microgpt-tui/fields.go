package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"microgpt/pkg/dataset"
	gptmodel "microgpt/pkg/model"
	"microgpt/pkg/optim"
	"microgpt/pkg/tokenizer"
	"microgpt/pkg/train"
)

type fieldType int

const (
	fieldString fieldType = iota
	fieldInt
	fieldFloat
	fieldBool
	fieldChoice
)

type cfgField struct {
	Key     string
	Label   string
	Type    fieldType
	Value   string
	Desc    string
	Choices []string
}

type preset struct {
	name        string
	description string
	values      map[string]string
}

func defaultFields() []cfgField {
	return []cfgField{
		{Key: "DATASET_PATH", Label: "Dataset Path", Type: fieldString, Value: "input.txt", Desc: "Text (one doc per line) or JSONL dataset; input.txt is downloaded if missing"},
		{Key: "DATASET_PRESET", Label: "Dataset Preset", Type: fieldChoice, Value: "none", Desc: "Built-in word list; overrides the path unless none", Choices: append([]string{"none"}, dataset.PresetIDs()...)},
		{Key: "TOKENIZER", Label: "Tokenizer", Type: fieldChoice, Value: "char", Desc: "char or bpe", Choices: []string{tokenizer.ModeChar, tokenizer.ModeBPE}},
		{Key: "BPE_ENCODING", Label: "BPE Encoding", Type: fieldString, Value: tokenizer.DefaultEncoding, Desc: "tiktoken encoding family"},
		{Key: "TOKEN_VOCAB_SIZE", Label: "Local Token Vocab", Type: fieldInt, Value: "2048", Desc: "Top BPE tokens to keep (+UNK,+BOS)"},
		{Key: "N_LAYER", Label: "Layers", Type: fieldInt, Value: "1", Desc: "Transformer layer count"},
		{Key: "N_EMBD", Label: "Embedding Size", Type: fieldInt, Value: "16", Desc: "Embedding width"},
		{Key: "N_HEAD", Label: "Attention Heads", Type: fieldInt, Value: "4", Desc: "Head count, must divide the embedding size"},
		{Key: "BLOCK_SIZE", Label: "Block Size", Type: fieldInt, Value: "16", Desc: "Max sequence length"},
		{Key: "NUM_STEPS", Label: "Training Steps", Type: fieldInt, Value: "1000", Desc: "Optimizer steps"},
		{Key: "LEARNING_RATE", Label: "Learning Rate", Type: fieldFloat, Value: "0.01", Desc: "Initial learning rate"},
		{Key: "BETA1", Label: "Adam Beta1", Type: fieldFloat, Value: "0.85", Desc: "Adam momentum term"},
		{Key: "BETA2", Label: "Adam Beta2", Type: fieldFloat, Value: "0.99", Desc: "Adam variance term"},
		{Key: "EPS_ADAM", Label: "Adam Epsilon", Type: fieldFloat, Value: "1e-8", Desc: "Adam stability epsilon"},
		{Key: "LR_DECAY", Label: "Linear LR Decay", Type: fieldBool, Value: "true", Desc: "Decay the learning rate linearly to zero"},
		{Key: "TEMPERATURE", Label: "Sample Temperature", Type: fieldFloat, Value: "0.5", Desc: "Generation randomness, must be > 0"},
		{Key: "SAMPLE_EVERY", Label: "Live Sample Interval", Type: fieldInt, Value: "100", Desc: "Sample during training every N steps (0 = off)"},
		{Key: "SAMPLE_COUNT", Label: "Sample Count", Type: fieldInt, Value: "8", Desc: "Samples drawn after training"},
		{Key: "SEED", Label: "Seed", Type: fieldInt, Value: "42", Desc: "Seed for init, shuffling and sampling"},
		{Key: "RUN_DB", Label: "Run History DB", Type: fieldString, Value: "", Desc: "Optional SQLite file for loss curves (empty = off)"},
	}
}

func defaultPresets() []preset {
	return []preset{
		{name: "tiny", description: "quick smoke run", values: map[string]string{"TOKENIZER": "char", "N_LAYER": "1", "N_EMBD": "8", "N_HEAD": "2", "BLOCK_SIZE": "8", "NUM_STEPS": "200", "LEARNING_RATE": "0.02"}},
		{name: "names", description: "the classic names run", values: map[string]string{"TOKENIZER": "char", "N_LAYER": "1", "N_EMBD": "16", "N_HEAD": "4", "BLOCK_SIZE": "16", "NUM_STEPS": "1000", "LEARNING_RATE": "0.01"}},
		{name: "deeper", description: "two layers, wider", values: map[string]string{"TOKENIZER": "char", "N_LAYER": "2", "N_EMBD": "32", "N_HEAD": "4", "BLOCK_SIZE": "24", "NUM_STEPS": "2000", "LEARNING_RATE": "0.008"}},
	}
}

// runConfig is the parsed form of the config fields.
type runConfig struct {
	datasetPath    string
	datasetPreset  string
	tokenizerMode  string
	bpeEncoding    string
	tokenVocabSize int
	model          gptmodel.Config
	train          train.Options
	sampleCount    int
	seed           uint64
	runDB          string
}

func parseFields(fields []cfgField) (runConfig, error) {
	vals := make(map[string]string, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(f.Value)
		switch f.Type {
		case fieldInt:
			if _, err := strconv.Atoi(v); err != nil {
				return runConfig{}, fmt.Errorf("%s must be an integer", f.Key)
			}
		case fieldFloat:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return runConfig{}, fmt.Errorf("%s must be a number", f.Key)
			}
		case fieldBool:
			if _, err := strconv.ParseBool(v); err != nil {
				return runConfig{}, fmt.Errorf("%s must be true or false", f.Key)
			}
		case fieldChoice:
			if !slices.Contains(f.Choices, v) {
				return runConfig{}, fmt.Errorf("%s must be one of %s", f.Key, strings.Join(f.Choices, ", "))
			}
		}
		vals[f.Key] = v
	}
	atoi := func(k string) int { n, _ := strconv.Atoi(vals[k]); return n }
	atof := func(k string) float64 { n, _ := strconv.ParseFloat(vals[k], 64); return n }

	if vals["DATASET_PATH"] == "" {
		return runConfig{}, fmt.Errorf("DATASET_PATH must not be empty")
	}
	mc := gptmodel.DefaultConfig()
	mc.NumLayers = atoi("N_LAYER")
	mc.EmbeddingDim = atoi("N_EMBD")
	mc.NumHeads = atoi("N_HEAD")
	mc.BlockSize = atoi("BLOCK_SIZE")

	opts := train.DefaultOptions()
	opts.NumSteps = atoi("NUM_STEPS")
	opts.Adam = optim.Config{
		LearningRate: atof("LEARNING_RATE"),
		Beta1:        atof("BETA1"),
		Beta2:        atof("BETA2"),
		Eps:          atof("EPS_ADAM"),
	}
	opts.LinearDecay, _ = strconv.ParseBool(vals["LR_DECAY"])
	opts.Sampling.Temperature = atof("TEMPERATURE")
	opts.SampleEvery = atoi("SAMPLE_EVERY")
	opts.SampleCount = 1
	if err := opts.Validate(); err != nil {
		return runConfig{}, err
	}
	if !(opts.Sampling.Temperature > 0) {
		return runConfig{}, fmt.Errorf("TEMPERATURE must be > 0")
	}
	sampleCount := atoi("SAMPLE_COUNT")
	if sampleCount < 1 {
		return runConfig{}, fmt.Errorf("SAMPLE_COUNT must be >= 1")
	}
	return runConfig{
		datasetPath:    vals["DATASET_PATH"],
		datasetPreset:  vals["DATASET_PRESET"],
		tokenizerMode:  vals["TOKENIZER"],
		bpeEncoding:    vals["BPE_ENCODING"],
		tokenVocabSize: atoi("TOKEN_VOCAB_SIZE"),
		model:          mc,
		train:          opts,
		sampleCount:    sampleCount,
		seed:           uint64(atoi("SEED")),
		runDB:          vals["RUN_DB"],
	}, nil
}
