package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "preset: arabertv02-base\nendpoint: http://gpu:8000\ntopk: 5\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := loadConfigFrom(path)
	if cfg.Preset != "arabertv02-base" || cfg.Endpoint != "http://gpu:8000" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TopK == nil || *cfg.TopK != 5 {
		t.Fatalf("topk not decoded: %v", cfg.TopK)
	}
	if cfg.MaxContext != nil {
		t.Fatalf("max_context should be unset, got %d", *cfg.MaxContext)
	}

	if got := loadConfigFrom(filepath.Join(dir, "missing.yaml")); got != (Config{}) {
		t.Fatalf("missing file should give a zero config, got %+v", got)
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("topk: [1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loadConfigFrom(bad); got != (Config{}) {
		t.Fatalf("invalid file should give a zero config, got %+v", got)
	}
}

func TestApplyConfigRespectsFlags(t *testing.T) {
	five, eight := int64(5), int64(8)
	cfg := Config{
		Preset:     "aragpt2-mega",
		Endpoint:   "http://from-config",
		Device:     "cuda",
		LogLevel:   "debug",
		TopK:       &five,
		MaxContext: &eight,
	}
	set := map[string]bool{flagEndpoint: true, flagTopK: true}
	isSet := func(name string) bool { return set[name] }

	sf := sessionFlags{preset: defaultPreset, endpoint: "http://from-flag", logLevel: "info"}
	applySessionConfig(isSet, cfg, &sf)
	if sf.preset != "aragpt2-mega" || sf.device != "cuda" || sf.logLevel != "debug" {
		t.Fatalf("config values not applied: %+v", sf)
	}
	if sf.endpoint != "http://from-flag" {
		t.Fatalf("explicit flag overridden: %q", sf.endpoint)
	}

	co := callOptions{topK: 2}
	applyCallConfig(isSet, cfg, &co)
	if co.topK != 2 || co.maxContext != 8 || co.batchSize != 0 {
		t.Fatalf("unexpected call options %+v", co)
	}
}

func TestModelConfigOverrides(t *testing.T) {
	sf := sessionFlags{
		preset:       "arabertv02-base",
		endpoint:     " http://x:1 ",
		backend:      "TOY",
		weights:      "w.safetensors",
		tokenizerDir: "/tok",
	}
	cfg, err := sf.modelConfig()
	if err != nil {
		t.Fatalf("modelConfig: %v", err)
	}
	if cfg.Name != "arabertv02-base" || cfg.Endpoint != "http://x:1" || cfg.Backend != "toy" ||
		cfg.Weights != "w.safetensors" || cfg.Tokenizer.Dir != "/tok" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	sf = sessionFlags{preset: "nope"}
	if _, err := sf.modelConfig(); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
