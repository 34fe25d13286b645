package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"microgpt/pkg/autograd"
	"microgpt/pkg/dataset"
	"microgpt/pkg/model"
	"microgpt/pkg/tokenizer"
	"microgpt/pkg/train"
)

const modelID = "microgpt"

type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopK        int      `json:"top_k"`
	TopP        float64  `json:"top_p"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopK        int           `json:"top_k"`
	TopP        float64       `json:"top_p"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type CompletionChoice struct {
	Text         string       `json:"text,omitempty"`
	Message      *ChatMessage `json:"message,omitempty"`
	Index        int          `json:"index"`
	FinishReason string       `json:"finish_reason"`
}

type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

type StatusResponse struct {
	Status     string  `json:"status"`
	Step       int     `json:"step"`
	NumSteps   int     `json:"num_steps"`
	Loss       float64 `json:"loss"`
	SmoothLoss float64 `json:"smooth_loss"`
	VocabSize  int     `json:"vocab_size"`
	NumParams  int     `json:"num_params"`
}

type server struct {
	sess    *train.Session
	created int64
}

func newServer(sess *train.Session) *server {
	return &server{sess: sess, created: time.Now().Unix()}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/v1/completions", s.handleCompletions)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *server) samplingOptions(temperature *float64, maxTokens, topK int, topP float64) model.SamplingOptions {
	opts := model.DefaultSamplingOptions()
	if temperature != nil {
		opts.Temperature = *temperature
	}
	opts.MaxTokens = maxTokens
	if maxTokens <= 0 {
		opts.MaxTokens = 128
	}
	opts.TopK = topK
	if topK <= 0 {
		opts.TopK = 40
	}
	opts.TopP = topP
	if topP <= 0 {
		opts.TopP = 0.9
	}
	opts.RepetitionPenalty = 1.1
	return opts
}

// generate returns the completion, or writes an error response and returns
// false.
func (s *server) generate(w http.ResponseWriter, opts model.SamplingOptions) (string, bool) {
	text, err := s.sess.Generate(opts)
	var de *autograd.DomainError
	switch {
	case errors.Is(err, train.ErrBusy):
		http.Error(w, "model is training", http.StatusServiceUnavailable)
		return "", false
	case errors.As(err, &de):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	case err != nil:
		log.Printf("generate: %v", err)
		http.Error(w, "generation failed", http.StatusInternalServerError)
		return "", false
	}
	return text, true
}

// countTokens excludes the two boundary tokens Encode adds.
func (s *server) countTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(len(s.sess.Tokenizer().Encode(text))-2, 0)
}

func (s *server) usage(prompt, completion string) Usage {
	u := Usage{PromptTokens: s.countTokens(prompt), CompletionTokens: s.countTokens(completion)}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func (s *server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	opts := s.samplingOptions(req.Temperature, req.MaxTokens, req.TopK, req.TopP)
	opts.Prompt = req.Prompt
	text, ok := s.generate(w, opts)
	if !ok {
		return
	}
	now := time.Now()
	writeJSON(w, http.StatusOK, CompletionResponse{
		ID:      fmt.Sprintf("cmpl-%d", now.UnixNano()),
		Object:  "text_completion",
		Created: now.Unix(),
		Model:   modelID,
		Choices: []CompletionChoice{{Text: text, FinishReason: "stop"}},
		Usage:   s.usage(req.Prompt, text),
	})
}

var stopSeqs = []string{"\nUser:", "\nAssistant:"}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Same layout as chat records in the training data.
	var promptBuilder strings.Builder
	for _, msg := range req.Messages {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&promptBuilder, "%s: %s\n", role, msg.Content)
	}
	promptBuilder.WriteString("Assistant: ")
	prompt := promptBuilder.String()

	opts := s.samplingOptions(req.Temperature, req.MaxTokens, req.TopK, req.TopP)
	opts.Prompt = prompt
	text, ok := s.generate(w, opts)
	if !ok {
		return
	}
	for _, stop := range stopSeqs {
		if idx := strings.Index(text, stop); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)

	now := time.Now()
	writeJSON(w, http.StatusOK, CompletionResponse{
		ID:      fmt.Sprintf("chatcmpl-%d", now.UnixNano()),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   modelID,
		Choices: []CompletionChoice{{
			Message:      &ChatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: s.usage(prompt, text),
	})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.sess.Summary()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:     s.sess.Status().String(),
		Step:       sum.Steps,
		NumSteps:   s.sess.Options().NumSteps,
		Loss:       sum.Loss,
		SmoothLoss: sum.SmoothLoss,
		VocabSize:  s.sess.Tokenizer().VocabSize(),
		NumParams:  s.sess.GPT().Params.NumParams(),
	})
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Object string      `json:"object"`
		Data   []modelInfo `json:"data"`
	}{
		Object: "list",
		Data:   []modelInfo{{ID: modelID, Object: "model", Created: s.created, OwnedBy: modelID}},
	})
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "MicroGPT API is running (%s).\n\nEndpoints:\n- POST /v1/completions\n- POST /v1/chat/completions\n- GET /v1/models\n- GET /v1/status\n", s.sess.Status())
}

func envInt(name string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(name)), 64)
	if err != nil {
		return def
	}
	return n
}

func newSession(ctx context.Context) (*train.Session, error) {
	path := os.Getenv("DATASET_PATH")
	if path == "" {
		path = dataset.DefaultPath
	}
	docs, _, err := dataset.Resolve(ctx, os.Getenv("DATASET_PRESET"), path)
	if err != nil {
		return nil, err
	}
	seed := uint64(envInt("SEED", 42))
	rng := rand.New(rand.NewPCG(seed, seed))
	dataset.Shuffle(docs, rng)

	mode := os.Getenv("TOKENIZER")
	tok, err := tokenizer.FromDocs(mode, docs, os.Getenv("BPE_ENCODING"), envInt("TOKEN_VOCAB_SIZE", 2048))
	if err != nil {
		return nil, err
	}
	cfg := model.DefaultConfig()
	cfg.NumLayers = envInt("N_LAYER", cfg.NumLayers)
	cfg.EmbeddingDim = envInt("N_EMBD", cfg.EmbeddingDim)
	cfg.NumHeads = envInt("N_HEAD", cfg.NumHeads)
	cfg.BlockSize = envInt("BLOCK_SIZE", cfg.BlockSize)

	opts := train.DefaultOptions()
	opts.NumSteps = envInt("NUM_STEPS", opts.NumSteps)
	opts.Adam.LearningRate = envFloat("LEARNING_RATE", opts.Adam.LearningRate)
	opts.LinearDecay = true
	log.Printf("Dataset %s: %d docs, vocab size %d", path, len(docs), tok.VocabSize())
	return train.NewSession(docs, tok, cfg, opts, rng)
}

func main() {
	ctx := context.Background()
	sess, err := newSession(ctx)
	if err != nil {
		log.Fatalf("Failed to set up training: %v", err)
	}
	h, err := sess.Start(ctx)
	if err != nil {
		log.Fatalf("Failed to start training: %v", err)
	}
	interval := max(envInt("METRIC_INTERVAL", 100), 1)
	go func() {
		for res := range h.Results() {
			if res.Step%interval == 0 || res.Step == res.NumSteps {
				log.Printf("%s | smooth %.4f", res, res.SmoothLoss)
			}
		}
		sum, err := h.Wait()
		if err != nil {
			log.Fatalf("Training failed: %v", err)
		}
		log.Printf("Training finished: %d steps in %s, loss %.4f", sum.Steps, sum.Elapsed.Truncate(time.Millisecond), sum.Loss)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "7860"
	}
	log.Printf("Starting server on port %s...", port)
	if err := http.ListenAndServe(":"+port, newServer(sess).routes()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
