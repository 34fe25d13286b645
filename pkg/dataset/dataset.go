// Package dataset loads training documents: plain text with one document per
// line, or JSONL records in the hybrid assistant schema.
package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// NamesURL is the default names corpus.
const NamesURL = "https://raw.githubusercontent.com/karpathy/makemore/988aa59/names.txt"

var ErrEmpty = errors.New("dataset: no documents")

// Record is one JSONL row. id and record_type are required.
type Record struct {
	RecordType string   `json:"record_type"`
	Text       string   `json:"text,omitempty"`
	Question   string   `json:"question,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	Input      string   `json:"input,omitempty"`
	Output     string   `json:"output,omitempty"`
	Task       string   `json:"task,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Result     string   `json:"result,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	Chosen     string   `json:"chosen,omitempty"`
	Rejected   string   `json:"rejected,omitempty"`
	ID         string   `json:"id,omitempty"`
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = normalize(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// Doc validates rec for its record type and renders the training text.
func (rec Record) Doc() (string, error) {
	if normalize(rec.ID) == "" {
		return "", fmt.Errorf("missing required field: id")
	}
	rt := normalize(rec.RecordType)
	if rt == "" {
		return "", fmt.Errorf("missing required field: record_type")
	}
	switch rt {
	case "knowledge", "memory":
		text := normalize(rec.Text)
		if text == "" {
			return "", fmt.Errorf("%s requires non-empty text", rt)
		}
		return text, nil
	case "qa":
		q := normalize(rec.Question)
		a := normalize(rec.Answer)
		if q == "" || a == "" {
			return "", fmt.Errorf("qa requires non-empty question and answer")
		}
		return joinNonEmpty("Question: "+q, "Answer: "+a), nil
	case "chat":
		in := normalize(rec.Input)
		out := normalize(rec.Output)
		if in == "" || out == "" {
			return "", fmt.Errorf("chat requires non-empty input and output")
		}
		return joinNonEmpty("User: "+in, "Assistant: "+out), nil
	case "trajectory":
		task := normalize(rec.Task)
		result := normalize(rec.Result)
		if task == "" || result == "" {
			return "", fmt.Errorf("trajectory requires non-empty task and result")
		}
		clean := make([]string, 0, len(rec.Actions))
		for _, a := range rec.Actions {
			if a = normalize(a); a != "" {
				clean = append(clean, a)
			}
		}
		actions := ""
		if len(clean) > 0 {
			actions = "Actions: " + strings.Join(clean, " | ")
		}
		return joinNonEmpty("Task: "+task, actions, "Result: "+result), nil
	case "preference":
		prompt := normalize(rec.Prompt)
		chosen := normalize(rec.Chosen)
		rejected := normalize(rec.Rejected)
		if prompt == "" || chosen == "" || rejected == "" {
			return "", fmt.Errorf("preference requires non-empty prompt, chosen, and rejected")
		}
		return joinNonEmpty("Prompt: "+prompt, "Preferred: "+chosen), nil
	default:
		return "", fmt.Errorf("unsupported record_type: %s", rt)
	}
}

func parseLine(line string, lineNo int) (Record, string, error) {
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Record{}, "", fmt.Errorf("invalid JSON at line %d: %w", lineNo, err)
	}
	doc, err := rec.Doc()
	if err != nil {
		if rec.ID != "" {
			return Record{}, "", fmt.Errorf("line %d (id=%s): %w", lineNo, rec.ID, err)
		}
		return Record{}, "", fmt.Errorf("line %d: %w", lineNo, err)
	}
	return rec, doc, nil
}

// ParseDocs splits text into trimmed, non-empty lines.
func ParseDocs(text string) []string {
	var docs []string
	for _, line := range strings.Split(text, "\n") {
		if line = normalize(line); line != "" {
			docs = append(docs, line)
		}
	}
	return docs
}

// Shuffle permutes docs in place.
func Shuffle(docs []string, rng *rand.Rand) {
	rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
}

func isJSONL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}

// Load reads the documents in path. Files ending in .jsonl are parsed as
// records; anything else is one document per line.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := Read(f, isJSONL(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Read parses documents from r.
func Read(r io.Reader, jsonl bool) ([]string, error) {
	var docs []string
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := normalize(s.Text())
		if line == "" {
			continue
		}
		if !jsonl {
			docs = append(docs, line)
			continue
		}
		_, doc, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmpty
	}
	return docs, nil
}

// Validate checks every record of a JSONL file, including id uniqueness,
// and returns the count per record type and the number of valid records.
func Validate(path string) (map[string]int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	counts := map[string]int{}
	seenIDs := map[string]int{}
	lineNo := 0
	valid := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for s.Scan() {
		lineNo++
		line := normalize(s.Text())
		if line == "" {
			continue
		}
		rec, _, err := parseLine(line, lineNo)
		if err != nil {
			return nil, valid, err
		}
		id := normalize(rec.ID)
		if prev, ok := seenIDs[id]; ok {
			return nil, valid, fmt.Errorf("line %d (id=%s): duplicate id also used at line %d", lineNo, id, prev)
		}
		seenIDs[id] = lineNo
		counts[normalize(rec.RecordType)]++
		valid++
	}
	if err := s.Err(); err != nil {
		return nil, valid, err
	}
	return counts, valid, nil
}

// Download fetches url into path unless path already exists.
func Download(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
