package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"microgpt/pkg/dataset"
	"microgpt/pkg/model"
	"microgpt/pkg/optim"
	"microgpt/pkg/runlog"
	"microgpt/pkg/tokenizer"
	"microgpt/pkg/train"
)

const defaultDatasetPath = dataset.DefaultPath

func normalize(s string) string {
	return strings.TrimSpace(s)
}

func envString(name, def string) string {
	if v := normalize(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(normalize(os.Getenv(name)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func readLinuxMemInfo() (totalKB uint64, availableKB uint64, ok bool) {
	b, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	var t, a uint64
	for _, ln := range strings.Split(string(b), "\n") {
		f := strings.Fields(ln)
		if len(f) < 2 {
			continue
		}
		switch f[0] {
		case "MemTotal:":
			if v, err := strconv.ParseUint(f[1], 10, 64); err == nil {
				t = v
			}
		case "MemAvailable:":
			if v, err := strconv.ParseUint(f[1], 10, 64); err == nil {
				a = v
			}
		}
	}
	if t == 0 {
		return 0, 0, false
	}
	return t, a, true
}

// config is everything main reads from the environment.
type config struct {
	datasetPath    string
	datasetPreset  string
	tokenizerMode  string
	bpeEncoding    string
	tokenVocabSize int
	model          model.Config
	train          train.Options
	sampleCount    int
	verbose        bool
	metricInterval int
	runDB          string
	seed           uint64
}

func loadConfig() config {
	mc := model.DefaultConfig()
	mc.NumLayers = envInt("N_LAYER", mc.NumLayers)
	mc.EmbeddingDim = envInt("N_EMBD", mc.EmbeddingDim)
	mc.NumHeads = envInt("N_HEAD", mc.NumHeads)
	mc.BlockSize = envInt("BLOCK_SIZE", mc.BlockSize)

	opts := train.DefaultOptions()
	opts.NumSteps = envInt("NUM_STEPS", opts.NumSteps)
	opts.Adam = optim.Config{
		LearningRate: envFloat("LEARNING_RATE", opts.Adam.LearningRate),
		Beta1:        envFloat("BETA1", opts.Adam.Beta1),
		Beta2:        envFloat("BETA2", opts.Adam.Beta2),
		Eps:          envFloat("EPS_ADAM", opts.Adam.Eps),
	}
	opts.LinearDecay = envBool("LR_DECAY", true)
	opts.Sampling.Temperature = envFloat("TEMPERATURE", opts.Sampling.Temperature)

	return config{
		datasetPath:    envString("DATASET_PATH", defaultDatasetPath),
		datasetPreset:  normalize(os.Getenv("DATASET_PRESET")),
		tokenizerMode:  envString("TOKENIZER", tokenizer.ModeChar),
		bpeEncoding:    envString("BPE_ENCODING", tokenizer.DefaultEncoding),
		tokenVocabSize: envInt("TOKEN_VOCAB_SIZE", 2048),
		model:          mc,
		train:          opts,
		sampleCount:    envInt("SAMPLE_COUNT", 20),
		verbose:        envBool("VERBOSE", false),
		metricInterval: max(envInt("METRIC_INTERVAL", 25), 1),
		runDB:          normalize(os.Getenv("RUN_DB")),
		seed:           uint64(envInt("SEED", 42)),
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	if len(os.Args) > 1 && os.Args[1] == "validate-dataset" {
		path := cfg.datasetPath
		if len(os.Args) > 2 {
			path = normalize(os.Args[2])
		}
		return validateDataset(path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	docs, source, err := dataset.Resolve(ctx, cfg.datasetPreset, cfg.datasetPath)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))
	dataset.Shuffle(docs, rng)
	fmt.Printf("dataset: %s | num docs: %d\n", source, len(docs))

	tok, err := tokenizer.FromDocs(cfg.tokenizerMode, docs, cfg.bpeEncoding, cfg.tokenVocabSize)
	if err != nil {
		return err
	}
	fmt.Printf("tokenizer: %s | vocab size: %d\n", cfg.tokenizerMode, tok.VocabSize())

	if !(cfg.train.Sampling.Temperature > 0) {
		return fmt.Errorf("invalid TEMPERATURE: must be > 0")
	}
	if cfg.sampleCount < 1 {
		return fmt.Errorf("invalid SAMPLE_COUNT: must be >=1")
	}
	sess, err := train.NewSession(docs, tok, cfg.model, cfg.train, rng)
	if err != nil {
		return err
	}
	mc := cfg.model
	fmt.Printf("config: n_layer=%d n_embd=%d n_head=%d block_size=%d\n", mc.NumLayers, mc.EmbeddingDim, mc.NumHeads, mc.BlockSize)
	fmt.Printf("num params: %d\n", sess.GPT().Params.NumParams())
	a := cfg.train.Adam
	fmt.Printf("optimizer: lr=%.5f beta1=%.3f beta2=%.3f eps=%.1e steps=%d\n", a.LearningRate, a.Beta1, a.Beta2, a.Eps, cfg.train.NumSteps)

	var (
		store *runlog.Store
		runID int64
	)
	if cfg.runDB != "" {
		store, err = runlog.Open(ctx, cfg.runDB)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.CreateRun(ctx, runlog.RunInfo{
			Dataset:   source,
			Tokenizer: cfg.tokenizerMode,
			VocabSize: tok.VocabSize(),
			NumParams: sess.GPT().Params.NumParams(),
			NumSteps:  cfg.train.NumSteps,
			Config:    map[string]any{"model": mc, "adam": a, "linear_decay": cfg.train.LinearDecay},
		})
		if err != nil {
			return err
		}
		fmt.Printf("run log: %s | run id: %d\n", cfg.runDB, runID)
	}

	trainErr := trainLoop(ctx, sess, cfg, store, runID)
	sum := sess.Summary()
	if store != nil {
		status := runlog.StatusDone
		switch {
		case trainErr != nil:
			status = runlog.StatusFailed
		case sum.Cancelled:
			status = runlog.StatusCancelled
		}
		// ctx may already be cancelled by SIGINT.
		if err := store.FinishRun(context.Background(), runID, status); err != nil {
			fmt.Fprintf(os.Stderr, "[warn] %v\n", err)
		}
	}
	if trainErr != nil {
		return trainErr
	}
	if sum.Cancelled {
		fmt.Printf("\ntraining interrupted at step %d / %d\n", sum.Steps, cfg.train.NumSteps)
	}

	fmt.Println("\n--- inference (generated samples) ---")
	sampling := cfg.train.Sampling
	for i := 0; i < cfg.sampleCount; i++ {
		text, err := sess.Generate(sampling)
		if err != nil {
			return err
		}
		fmt.Printf("sample %2d: %s\n", i+1, text)
	}
	return nil
}

func trainLoop(ctx context.Context, sess *train.Session, cfg config, store *runlog.Store, runID int64) error {
	for res, err := range sess.Steps(ctx) {
		if err != nil {
			return err
		}
		if store != nil {
			rec := runlog.StepRecord{Step: res.Step, Loss: res.Loss, SmoothLoss: res.SmoothLoss, LearningRate: res.LearningRate}
			if err := store.RecordStep(context.Background(), runID, rec); err != nil {
				return err
			}
		}
		if !cfg.verbose {
			fmt.Printf("%s\r", res)
			continue
		}
		if res.Step%cfg.metricInterval == 0 || res.Step == 1 || res.Step == res.NumSteps {
			printMetrics(res)
		}
	}
	return nil
}

func printMetrics(res train.StepResult) {
	elapsed := res.Elapsed.Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	stepsPerSec := float64(res.Step) / elapsed
	eta := time.Duration(float64(res.NumSteps-res.Step) / stepsPerSec * float64(time.Second))
	mem := &runtime.MemStats{}
	runtime.ReadMemStats(mem)
	sysUsedPct := -1.0
	sysAvailMB := -1.0
	if totalKB, availableKB, ok := readLinuxMemInfo(); ok {
		sysUsedPct = float64(totalKB-availableKB) / float64(totalKB) * 100.0
		sysAvailMB = float64(availableKB) / 1024.0
	}
	fmt.Printf(
		"[step] %d/%d loss=%.4f smooth=%.4f lr=%.6f seq_len=%d steps_per_sec=%.3f elapsed=%s eta=%s heap_alloc_mb=%.2f sys_ram_used_pct=%.2f sys_ram_avail_mb=%.2f gc=%d\n",
		res.Step,
		res.NumSteps,
		res.Loss,
		res.SmoothLoss,
		res.LearningRate,
		res.SeqLen,
		stepsPerSec,
		res.Elapsed.Truncate(time.Second).String(),
		eta.Truncate(time.Second).String(),
		float64(mem.Alloc)/1024.0/1024.0,
		sysUsedPct,
		sysAvailMB,
		mem.NumGC,
	)
}

func validateDataset(path string) error {
	if path == "" {
		return errors.New("validate-dataset requires a non-empty dataset path")
	}
	counts, total, err := dataset.Validate(path)
	if err != nil {
		return err
	}
	fmt.Printf("dataset valid: %s\n", path)
	fmt.Printf("records: %d\n", total)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("- %s: %d\n", k, counts[k])
	}
	return nil
}
