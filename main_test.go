package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_INT", " 12 ")
	t.Setenv("T_BAD_INT", "twelve")
	t.Setenv("T_FLOAT", "0.25")
	t.Setenv("T_BOOL", "yes")
	t.Setenv("T_BAD_BOOL", "perhaps")

	if got := envInt("T_INT", 1); got != 12 {
		t.Errorf("envInt = %d, want 12", got)
	}
	if got := envInt("T_BAD_INT", 1); got != 1 {
		t.Errorf("envInt(bad) = %d, want default", got)
	}
	if got := envInt("T_UNSET", 7); got != 7 {
		t.Errorf("envInt(unset) = %d, want default", got)
	}
	if got := envFloat("T_FLOAT", 1); got != 0.25 {
		t.Errorf("envFloat = %v, want 0.25", got)
	}
	if !envBool("T_BOOL", false) {
		t.Error("envBool(yes) = false")
	}
	if !envBool("T_BAD_BOOL", true) {
		t.Error("envBool(bad) did not fall back to the default")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("N_EMBD", "8")
	t.Setenv("N_HEAD", "2")
	t.Setenv("NUM_STEPS", "50")
	t.Setenv("LEARNING_RATE", "0.05")
	t.Setenv("LR_DECAY", "false")
	t.Setenv("METRIC_INTERVAL", "0")
	t.Setenv("DATASET_PRESET", " pokemon ")

	cfg := loadConfig()
	if cfg.model.EmbeddingDim != 8 || cfg.model.NumHeads != 2 {
		t.Errorf("model = %+v", cfg.model)
	}
	if cfg.train.NumSteps != 50 || cfg.train.Adam.LearningRate != 0.05 || cfg.train.LinearDecay {
		t.Errorf("train = %+v", cfg.train)
	}
	if cfg.train.Adam.Beta1 != 0.85 || cfg.train.Adam.Beta2 != 0.99 {
		t.Errorf("adam defaults = %+v", cfg.train.Adam)
	}
	if cfg.metricInterval != 1 {
		t.Errorf("metricInterval = %d, want clamp to 1", cfg.metricInterval)
	}
	if cfg.datasetPreset != "pokemon" {
		t.Errorf("datasetPreset = %q, want pokemon", cfg.datasetPreset)
	}
	if cfg.datasetPath != defaultDatasetPath || cfg.tokenizerMode != "char" {
		t.Errorf("dataset = %q, tokenizer = %q", cfg.datasetPath, cfg.tokenizerMode)
	}
}

func TestValidateDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.jsonl")
	body := `{"id":"1","record_type":"qa","question":"q","answer":"a"}` + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := validateDataset(path); err != nil {
		t.Errorf("validateDataset() = %v", err)
	}
	if err := validateDataset(""); err == nil {
		t.Error("expected an error for an empty path")
	}
}
