package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file (~/.config/gltr/config.yaml).
// Numeric fields are pointers so "not set" differs from zero.
type Config struct {
	Preset   string `yaml:"preset"`
	Endpoint string `yaml:"endpoint"`
	Device   string `yaml:"device"`
	Backend  string `yaml:"backend"`

	TopK       *int64 `yaml:"topk"`
	MaxContext *int64 `yaml:"max_context"`
	BatchSize  *int64 `yaml:"batch_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gltr", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	return loadConfigFrom(configPath())
}

func loadConfigFrom(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applySessionConfig fills session flags from cfg when the flag was not set
// on the command line.
func applySessionConfig(isSet func(string) bool, cfg Config, f *sessionFlags) {
	if cfg.Preset != "" && !isSet(flagPreset) {
		f.preset = cfg.Preset
	}
	if cfg.Endpoint != "" && !isSet(flagEndpoint) {
		f.endpoint = cfg.Endpoint
	}
	if cfg.Device != "" && !isSet(flagDevice) {
		f.device = cfg.Device
	}
	if cfg.Backend != "" && !isSet(flagBackend) {
		f.backend = cfg.Backend
	}
	if cfg.LogLevel != "" && !isSet(flagLogLevel) {
		f.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !isSet(flagLogFormat) {
		f.logFormat = cfg.LogFormat
	}
}

// applyCallConfig fills ranking options from cfg when the flag was not set.
func applyCallConfig(isSet func(string) bool, cfg Config, o *callOptions) {
	if cfg.TopK != nil && !isSet(flagTopK) {
		o.topK = *cfg.TopK
	}
	if cfg.MaxContext != nil && !isSet(flagMaxContext) {
		o.maxContext = *cfg.MaxContext
	}
	if cfg.BatchSize != nil && !isSet(flagBatchSize) {
		o.batchSize = *cfg.BatchSize
	}
}
