package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
	"github.com/samcharles93/gltr/internal/model/toy"
)

func toyWeightsCmd() *cli.Command {
	var (
		sf     sessionFlags
		out    string
		hidden int64
		window int64
		seed   int64
	)

	return &cli.Command{
		Name:  "toy-weights",
		Usage: "Write deterministic toy model weights sized to a tokenizer vocabulary",
		Flags: append(sf.flags(),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output safetensors file",
				Required:    true,
				Destination: &out,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "embedding width",
				Value:       32,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "window",
				Usage:       "context window of the toy model",
				Value:       4,
				Destination: &window,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "weight initialization seed",
				Value:       1,
				Destination: &seed,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, err := sf.logger(errWriter(cmd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg, err := sf.modelConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg = cfg.WithDefaults()
			tok, err := gltr.LoadTokenizer(cfg.Tokenizer)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load tokenizer: %v", err), 1)
			}
			w, err := toy.NewWeights(toy.Kind(cfg.Kind), tok.VocabSize(), int(hidden), int(window), uint64(seed))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			out = strings.TrimSpace(out)
			if err := w.Save(out); err != nil {
				return cli.Exit(fmt.Sprintf("error: write weights: %v", err), 1)
			}
			log.Info("wrote toy weights", "path", out, "kind", string(cfg.Kind),
				"vocab", tok.VocabSize(), "hidden", hidden, "window", window)
			return nil
		},
	}
}
