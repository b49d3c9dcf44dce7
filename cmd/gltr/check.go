package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gltr/internal/gltr"
	"github.com/samcharles93/gltr/internal/logger"
	"github.com/samcharles93/gltr/internal/version"
)

const (
	formatAuto   = "auto"
	formatJSON   = "json"
	formatPretty = "pretty"
)

func checkCmd() *cli.Command {
	var (
		sf       sessionFlags
		co       callOptions
		file     string
		format   string
		noColor  bool
		indented bool
	)

	flags := append(sf.flags(), co.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "read the text from a file (- for stdin)",
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "output format (auto, json, pretty)",
			Value:       formatAuto,
			Destination: &format,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "disable colors in pretty output",
			Destination: &noColor,
		},
		&cli.BoolFlag{
			Name:        "indent",
			Usage:       "indent JSON output",
			Destination: &indented,
		},
	)

	return &cli.Command{
		Name:      "check",
		Usage:     "Rank every token of a text against the model's predictions",
		ArgsUsage: "[text]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgFile := LoadConfig()
			applySessionConfig(cmd.IsSet, cfgFile, &sf)
			applyCallConfig(cmd.IsSet, cfgFile, &co)

			log, err := sf.logger(errWriter(cmd))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ctx = logger.WithContext(ctx, log)
			log.Debug("gltr", "version", version.String())

			text, err := readText(cmd, file)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read text: %v", err), 1)
			}
			cfg, err := sf.modelConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			session, err := gltr.Load(cfg, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}

			start := time.Now()
			payload, err := session.CheckProbabilities(ctx, text, co.options())
			if err != nil {
				if errors.Is(err, gltr.ErrEmptyInput) {
					return cli.Exit("error: the text has no token to evaluate", 1)
				}
				return cli.Exit(fmt.Sprintf("error: check: %v", err), 1)
			}
			log.Info("checked", "config", session.Config.Name, "positions", payload.Len(),
				"elapsed", time.Since(start))

			w := writer(cmd)
			switch resolveFormat(format, w) {
			case formatJSON:
				enc := json.NewEncoder(w)
				if indented {
					enc.SetIndent("", "  ")
				}
				err = enc.Encode(payload)
			case formatPretty:
				err = renderPretty(w, payload, !noColor && isTerminalWriter(w))
			default:
				return cli.Exit(fmt.Sprintf("error: unknown format %q (expected auto, json or pretty)", format), 1)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: write output: %v", err), 1)
			}
			return nil
		},
	}
}

// resolveFormat picks pretty output for terminals and JSON otherwise when
// format is auto.
func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != formatAuto && format != "" {
		return format
	}
	if isTerminalWriter(w) {
		return formatPretty
	}
	return formatJSON
}

// readText takes the text from the arguments, the named file, or stdin.
func readText(cmd *cli.Command, file string) (string, error) {
	if file == "" && cmd.Args().Len() > 0 {
		return strings.Join(cmd.Args().Slice(), " "), nil
	}
	var (
		data []byte
		err  error
	)
	switch file {
	case "", "-":
		data, err = io.ReadAll(reader(cmd))
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}
