package gltr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samcharles93/gltr/internal/surface"
)

// Presets returns the built-in model configurations. Tokenizer locations,
// endpoint and backend are left for the caller to fill in.
func Presets() []Config {
	return []Config{
		{
			Name:       "aragpt2-base",
			Kind:       Causal,
			Model:      "aubmindlab/aragpt2-base",
			Tokenizer:  TokenizerConfig{Family: surface.ByteLevel},
			Normalizer: NormalizerConfig{Arabic: true},
		},
		{
			Name:       "aragpt2-mega",
			Kind:       Causal,
			Model:      "aubmindlab/aragpt2-mega",
			Tokenizer:  TokenizerConfig{Family: surface.ByteLevel},
			Normalizer: NormalizerConfig{Arabic: true},
		},
		{
			Name:      "arabertv02-base",
			Kind:      Masked,
			Model:     "aubmindlab/bert-base-arabertv02",
			Tokenizer: TokenizerConfig{Family: surface.Continuation},
			Normalizer: NormalizerConfig{
				Arabic:              true,
				SeparatePunctuation: true,
			},
		},
	}
}

// Preset returns the preset called name.
func Preset(name string) (Config, error) {
	presets := Presets()
	i := slices.IndexFunc(presets, func(c Config) bool {
		return strings.EqualFold(c.Name, strings.TrimSpace(name))
	})
	if i < 0 {
		names := make([]string, len(presets))
		for j, p := range presets {
			names[j] = p.Name
		}
		return Config{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return presets[i], nil
}
