package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
	"github.com/samcharles93/gltr/internal/logger"
)

const (
	envEndpoint    = "GLTR_ENDPOINT"
	defaultPreset  = "aragpt2-base"
	flagPreset     = "preset"
	flagEndpoint   = "endpoint"
	flagDevice     = "device"
	flagBackend    = "backend"
	flagLogLevel   = "log-level"
	flagLogFormat  = "log-format"
	flagTopK       = "topk"
	flagMaxContext = "max-context"
	flagBatchSize  = "batch-size"
)

// sessionFlags are the flags every model-backed command shares.
type sessionFlags struct {
	preset     string
	configFile string
	endpoint   string
	device     string
	backend    string
	weights    string

	tokenizerDir  string
	tokenizerFile string
	vocab         string
	merges        string

	logLevel  string
	logFormat string
	debug     bool
}

func (f *sessionFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        flagPreset,
			Aliases:     []string{"p"},
			Usage:       "built-in model configuration (see gltr presets)",
			Value:       defaultPreset,
			Destination: &f.preset,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "YAML model configuration, replaces --preset",
			Destination: &f.configFile,
		},
		&cli.StringFlag{
			Name:        flagEndpoint,
			Usage:       "inference server URL for the remote backend",
			Sources:     cli.EnvVars(envEndpoint),
			Destination: &f.endpoint,
		},
		&cli.StringFlag{
			Name:        flagDevice,
			Usage:       "device requested from the inference server (auto, cpu, cuda)",
			Destination: &f.device,
		},
		&cli.StringFlag{
			Name:        flagBackend,
			Usage:       "where forward passes run (remote, toy)",
			Destination: &f.backend,
		},
		&cli.StringFlag{
			Name:        "weights",
			Usage:       "safetensors file of the toy backend",
			Destination: &f.weights,
		},
		&cli.StringFlag{
			Name:        "tokenizer-dir",
			Usage:       "directory holding tokenizer.json, vocab.json + merges.txt or vocab.txt",
			Destination: &f.tokenizerDir,
		},
		&cli.StringFlag{
			Name:        "tokenizer-json",
			Usage:       "override path to tokenizer.json",
			Destination: &f.tokenizerFile,
		},
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "override path to vocab.json or vocab.txt",
			Destination: &f.vocab,
		},
		&cli.StringFlag{
			Name:        "merges",
			Usage:       "override path to merges.txt",
			Destination: &f.merges,
		},
		&cli.StringFlag{
			Name:        flagLogLevel,
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &f.logLevel,
		},
		&cli.StringFlag{
			Name:        flagLogFormat,
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &f.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &f.debug,
		},
	}
}

// logger builds the command logger. Records go to w, colored only when w is
// a terminal.
func (f *sessionFlags) logger(w io.Writer) (logger.Logger, error) {
	level := logger.ParseLevel(f.logLevel)
	if f.debug {
		level = logger.ParseLevel("debug")
	}
	return logger.Build(w, f.logFormat, level, isTerminalWriter(w))
}

// modelConfig resolves the model configuration: a --config file or a preset,
// with the tokenizer, backend and endpoint flags layered on top.
func (f *sessionFlags) modelConfig() (gltr.Config, error) {
	var (
		cfg gltr.Config
		err error
	)
	if strings.TrimSpace(f.configFile) != "" {
		cfg, err = gltr.LoadConfigFile(f.configFile)
	} else {
		cfg, err = gltr.Preset(f.preset)
	}
	if err != nil {
		return gltr.Config{}, err
	}

	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&cfg.Endpoint, f.endpoint)
	override(&cfg.Device, f.device)
	override(&cfg.Weights, f.weights)
	override(&cfg.Tokenizer.Dir, f.tokenizerDir)
	override(&cfg.Tokenizer.File, f.tokenizerFile)
	override(&cfg.Tokenizer.Vocab, f.vocab)
	override(&cfg.Tokenizer.Merges, f.merges)
	if b := strings.TrimSpace(f.backend); b != "" {
		cfg.Backend = gltr.Backend(strings.ToLower(b))
	}
	return cfg, nil
}

// callOptions carries the per-call ranking flags of the check command.
type callOptions struct {
	topK       int64
	maxContext int64
	batchSize  int64
}

func (o *callOptions) flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        flagTopK,
			Aliases:     []string{"k", "top-k"},
			Usage:       fmt.Sprintf("alternatives reported per position (default %d)", gltr.DefaultTopK),
			Destination: &o.topK,
		},
		&cli.Int64Flag{
			Name:        flagMaxContext,
			Aliases:     []string{"max-ctx"},
			Usage:       fmt.Sprintf("tokens on each side of a masked position (default %d)", gltr.DefaultMaxContext),
			Destination: &o.maxContext,
		},
		&cli.Int64Flag{
			Name:        flagBatchSize,
			Usage:       fmt.Sprintf("masked windows per forward pass (default %d)", gltr.DefaultBatchSize),
			Destination: &o.batchSize,
		},
	}
}

func (o callOptions) options() gltr.Options {
	return gltr.Options{TopK: int(o.topK), MaxContext: int(o.maxContext), BatchSize: int(o.batchSize)}
}
