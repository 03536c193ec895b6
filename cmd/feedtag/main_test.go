package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/feedtag/internal/config"
)

const testConfig = `
http:
  port: 8080
storage:
  driver: memory
classifier:
  reduce:
    min_doc_support: 1
    max_doc_fraction: 1
    min_prob_distance: 0
evaluate:
  folds: 3
  test_ratio: 0.25
  parallelism: 2
  grid:
    - {min_doc_support: 1, max_doc_fraction: 1, min_prob_distance: 0}
    - {min_doc_support: 2, max_doc_fraction: 0.9, min_prob_distance: 0.1}
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func trainingCorpus() string {
	var b strings.Builder
	for i := range 20 {
		id := string(rune('a' + i))
		b.WriteString(`{"id":"go-` + id + `","title":"goroutine channel scheduler","tags":[{"label":"golang"}]}` + "\n")
		b.WriteString(`{"id":"bake-` + id + `","title":"sourdough flour oven","tags":[{"label":"baking"}]}` + "\n")
	}
	return b.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMain(m *testing.M) {
	rootCmd.AddCommand(serveCmd, evaluateCmd, classifyCmd, versionCmd)
	rootCmd.PersistentFlags().String("env", "local", "")
	rootCmd.PersistentFlags().String("config", "", "")
	os.Exit(m.Run())
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "test.yaml", testConfig)
	train := writeFile(t, dir, "train.jsonl", trainingCorpus())
	input := writeFile(t, dir, "unread.jsonl",
		`{"id":"u1","title":"goroutine channel","unread":true}`+"\n"+
			`{"id":"u2","title":"goroutine channel","unread":false}`+"\n")

	out, err := execute(t, "classify", "--config", cfgPath, "--corpus", train, "--input", input)
	if err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), out)
	}
	var rec recommendationJSON
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.EntryID != "u1" || len(rec.Tags) == 0 || rec.Tags[0].Tag != "golang" || rec.Tags[0].Verdict != "auto" {
		t.Errorf("recommendation = %+v", rec)
	}
}

func TestClassify_MemoryWithoutCorpus(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "test.yaml", testConfig)
	input := writeFile(t, dir, "unread.jsonl", `{"id":"u1","unread":true}`)

	if _, err := execute(t, "classify", "--config", cfgPath, "--corpus", "", "--input", input); err == nil {
		t.Fatal("expected error without corpus in memory mode")
	}
}

func TestEvaluate_JSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "test.yaml", testConfig)
	train := writeFile(t, dir, "train.jsonl", trainingCorpus())

	out, err := execute(t, "evaluate", "--config", cfgPath, "--corpus", train, "--format", "json", "--top", "0")
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d results, want 2:\n%s", len(lines), out)
	}
	var best resultJSON
	if err := json.Unmarshal([]byte(lines[0]), &best); err != nil {
		t.Fatal(err)
	}
	if best.MeanF == nil || *best.MeanF != 1 {
		t.Errorf("best = %+v, want mean F 1 on a separable corpus", best)
	}
}

func TestEvaluate_Table(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "test.yaml", testConfig)
	train := writeFile(t, dir, "train.jsonl", trainingCorpus())

	out, err := execute(t, "evaluate", "--config", cfgPath, "--corpus", train, "--format", "table", "--top", "1")
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "MIN_DOC") || strings.Count(out, "\n") != 2 {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "feedtag dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestEvaluateConfig_Grid(t *testing.T) {
	ec := evaluateConfig(config.EvaluateConfig{Folds: 2}, 50)
	if len(ec.Grid) != 70 || ec.TopWords != 50 {
		t.Errorf("default grid = %d configs, top words %d", len(ec.Grid), ec.TopWords)
	}

	ec = evaluateConfig(config.EvaluateConfig{Grid: []config.ReduceConfig{{MinDocSupport: 3, MaxDocFraction: 0.5}}}, 0)
	if len(ec.Grid) != 1 || ec.Grid[0].MinDocSupport != 3 {
		t.Errorf("custom grid = %+v", ec.Grid)
	}
}

func TestTaggingConfig_InvalidPolicy(t *testing.T) {
	if _, err := taggingConfig(config.ClassifierConfig{AutoThreshold: 0.5, SuggestThreshold: 0.7}); err == nil {
		t.Fatal("expected error when suggest exceeds auto")
	}
}
