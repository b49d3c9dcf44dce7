package gltr

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/gltr/internal/model"
	"github.com/samcharles93/gltr/internal/surface"
)

// Backend selects where forward passes run.
type Backend string

const (
	// BackendRemote sends forward passes to an inference server.
	BackendRemote Backend = "remote"
	// BackendToy runs a deterministic toy model from a safetensors file.
	BackendToy Backend = "toy"
)

// Config describes one model configuration: which pipeline, which
// tokenizer files, and where the model runs.
type Config struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	// Model is the identifier the inference server loads.
	Model      string           `yaml:"model"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Normalizer NormalizerConfig `yaml:"normalizer"`

	Backend  Backend `yaml:"backend"`
	Endpoint string  `yaml:"endpoint"`
	Device   string  `yaml:"device"`
	// Weights is the safetensors file of the toy backend.
	Weights string `yaml:"weights"`

	TopK       int `yaml:"topk"`
	MaxContext int `yaml:"max_context"`
	BatchSize  int `yaml:"batch_size"`
}

// TokenizerConfig locates the vocabulary files. File points at a
// tokenizer.json; otherwise Vocab (and Merges for byte-level BPE) are used.
// Dir is searched for whichever of those files are left empty.
type TokenizerConfig struct {
	Family    surface.Family `yaml:"family"`
	Dir       string         `yaml:"dir"`
	File      string         `yaml:"file"`
	Vocab     string         `yaml:"vocab"`
	Merges    string         `yaml:"merges"`
	Lowercase bool           `yaml:"lowercase"`
}

type NormalizerConfig struct {
	Arabic              bool `yaml:"arabic"`
	KeepEmojis          bool `yaml:"keep_emojis"`
	SeparatePunctuation bool `yaml:"separate_punctuation"`
}

// LoadConfigFile reads a single YAML model configuration.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML and rejects unknown fields.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// WithDefaults fills unset fields: the tokenizer family follows the kind,
// the backend defaults to remote, and the call options to DefaultOptions.
func (c Config) WithDefaults() Config {
	c.Kind = Kind(strings.ToLower(strings.TrimSpace(string(c.Kind))))
	if c.Tokenizer.Family == "" {
		switch c.Kind {
		case Causal:
			c.Tokenizer.Family = surface.ByteLevel
		case Masked:
			c.Tokenizer.Family = surface.Continuation
		}
	}
	if c.Backend == "" {
		c.Backend = BackendRemote
	}
	if strings.TrimSpace(c.Device) == "" {
		c.Device = model.Auto
	}
	opts := c.Options().Merge(DefaultOptions())
	c.TopK, c.MaxContext, c.BatchSize = opts.TopK, opts.MaxContext, opts.BatchSize
	return c
}

// Options returns the call defaults carried by the configuration.
func (c Config) Options() Options {
	return Options{TopK: c.TopK, MaxContext: c.MaxContext, BatchSize: c.BatchSize}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseKind(string(c.Kind)); err != nil {
		errs = append(errs, err)
	}
	if _, err := surface.ParseFamily(string(c.Tokenizer.Family)); err != nil {
		errs = append(errs, err)
	}
	if c.Tokenizer.File == "" && c.Tokenizer.Vocab == "" && c.Tokenizer.Dir == "" {
		errs = append(errs, errors.New("tokenizer: one of file, vocab or dir is required"))
	}
	if _, err := model.NormalizeDevice(c.Device); err != nil {
		errs = append(errs, err)
	}
	switch c.Backend {
	case BackendRemote:
		if strings.TrimSpace(c.Endpoint) == "" {
			errs = append(errs, errors.New("remote backend: endpoint is required"))
		}
		if strings.TrimSpace(c.Model) == "" {
			errs = append(errs, errors.New("remote backend: model is required"))
		}
	case BackendToy:
		if strings.TrimSpace(c.Weights) == "" {
			errs = append(errs, errors.New("toy backend: weights file is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (expected remote or toy)", c.Backend))
	}
	if err := c.Options().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
