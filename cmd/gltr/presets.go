package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
)

func presetsCmd() *cli.Command {
	return &cli.Command{
		Name:    "presets",
		Aliases: []string{"ls"},
		Usage:   "List the built-in model configurations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := writer(cmd)
			presets := gltr.Presets()
			for _, p := range presets {
				p = p.WithDefaults()
				if _, err := fmt.Fprintf(w, "  %-18s %-7s %-13s %s\n",
					p.Name, p.Kind, p.Tokenizer.Family, p.Model); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(w, "\n%d preset(s)\n", len(presets))
			return err
		},
	}
}
