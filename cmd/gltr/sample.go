package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
)

func sampleCmd() *cli.Command {
	var (
		sf          sessionFlags
		length      int64
		topK        int64
		temperature float64
		seed        int64
	)

	return &cli.Command{
		Name:  "sample",
		Usage: "Generate text from a causal model, starting from the end-of-text token",
		Flags: append(sf.flags(),
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of tokens to generate",
				Value:       gltr.DefaultSampleLength,
				Destination: &length,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"topk", "k"},
				Usage:       "sample from the k most likely tokens (1 = greedy)",
				Value:       gltr.DefaultSampleTopK,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "sampling temperature",
				Value:       gltr.DefaultSampleTemperature,
				Destination: &temperature,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed",
				Destination: &seed,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applySessionConfig(cmd.IsSet, LoadConfig(), &sf)
			log, err := sf.logger(errWriter(cmd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg, err := sf.modelConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			session, err := gltr.Load(cfg, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			text, err := session.Sample(ctx, gltr.SampleOptions{
				Length:      int(length),
				TopK:        int(topK),
				Temperature: temperature,
				Seed:        seed,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: sample: %v", err), 1)
			}
			_, err = fmt.Fprintln(writer(cmd), text)
			return err
		},
	}
}
