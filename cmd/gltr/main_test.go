package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
)

// runApp runs the CLI with isolated output and an empty config directory.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader("")
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := app.Run(context.Background(), append([]string{"gltr"}, args...))
	return out.String(), err
}

// toyFixture writes a tiny byte-level tokenizer and matching toy weights.
func toyFixture(t *testing.T) (tokDir, weights string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(envEndpoint, "")

	tokDir = t.TempDir()
	files := map[string]string{
		"vocab.json": `{"<|endoftext|>":0,"a":1,"b":2,"Ġ":3,"Ġb":4}`,
		"merges.txt": "#version: 0.2\nĠ b\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tokDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	weights = filepath.Join(t.TempDir(), "toy.safetensors")
	if _, err := runApp(t, "toy-weights", "--tokenizer-dir", tokDir, "--hidden", "8", "--out", weights); err != nil {
		t.Fatalf("toy-weights: %v", err)
	}
	if _, err := os.Stat(weights); err != nil {
		t.Fatalf("weights not written: %v", err)
	}
	return tokDir, weights
}

func TestCheckJSON(t *testing.T) {
	tokDir, weights := toyFixture(t)

	out, err := runApp(t, "check", "--backend", "toy", "--weights", weights,
		"--tokenizer-dir", tokDir, "--format", "json", "--topk", "2", "a b a")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var p gltr.Payload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("output is not a payload: %v\n%s", err, out)
	}
	if p.Len() != 3 || len(p.Tokens) != 3 || len(p.TopK) != 3 {
		t.Fatalf("expected 3 evaluated positions, got %+v", p)
	}
	for i, alts := range p.TopK {
		if len(alts) != 2 {
			t.Fatalf("position %d: %d alternatives, want 2", i, len(alts))
		}
	}
	if len(p.Lead) != 1 || p.Lead[0] != "a" {
		t.Fatalf("unexpected lead %q", p.Lead)
	}
}

func TestCheckPrettyFromStdinUsesConfigFile(t *testing.T) {
	tokDir, weights := toyFixture(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "gltr")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("backend: toy\ntopk: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Reader = strings.NewReader("a b\n")
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := app.Run(context.Background(), []string{"gltr", "check", "--weights", weights,
		"--tokenizer-dir", tokDir, "--format", "pretty", "--file", "-"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out.String(), "top-10: 1  top-100: 0  top-1000: 0  rest: 0") {
		t.Fatalf("unexpected pretty output %q", out.String())
	}
}

func TestCheckEmptyInputFails(t *testing.T) {
	tokDir, weights := toyFixture(t)
	_, err := runApp(t, "check", "--backend", "toy", "--weights", weights,
		"--tokenizer-dir", tokDir, "a")
	if err == nil || !strings.Contains(err.Error(), "no token to evaluate") {
		t.Fatalf("expected empty input error, got %v", err)
	}
}

func TestSampleCommand(t *testing.T) {
	tokDir, weights := toyFixture(t)
	args := []string{"sample", "--backend", "toy", "--weights", weights,
		"--tokenizer-dir", tokDir, "--length", "5", "--top-k", "1"}
	first, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	second, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if first != second || !strings.HasSuffix(first, "\n") {
		t.Fatalf("greedy sampling should be reproducible: %q vs %q", first, second)
	}
}

func TestPresetsCommand(t *testing.T) {
	out, err := runApp(t, "presets")
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	for _, p := range gltr.Presets() {
		if !strings.Contains(out, p.Name) || !strings.Contains(out, p.Model) {
			t.Errorf("output misses preset %s:\n%s", p.Name, out)
		}
	}
	if !strings.Contains(out, "3 preset(s)") {
		t.Fatalf("missing count in %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "version:") || !strings.Contains(out, "go:") {
		t.Fatalf("unexpected output %q", out)
	}
}
