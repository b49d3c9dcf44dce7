package gltr

import (
	"fmt"
	"strings"
)

const (
	DefaultTopK       = 40
	DefaultMaxContext = 20
	DefaultBatchSize  = 20
)

// Kind selects the ranking pipeline.
type Kind string

const (
	// Causal models predict each token from the tokens before it.
	Causal Kind = "causal"
	// Masked models predict a hidden token from context on both sides.
	Masked Kind = "masked"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Causal, Masked:
		return k, nil
	default:
		return "", fmt.Errorf("unknown model kind %q (expected causal or masked)", s)
	}
}

// Options tunes one ranking call. Zero fields take the checker's defaults.
type Options struct {
	// TopK is the number of alternatives reported per position.
	TopK int
	// MaxContext is the number of tokens on each side of a masked position.
	// Causal checkers ignore it.
	MaxContext int
	// BatchSize is the number of masked windows per forward pass. Causal
	// checkers ignore it.
	BatchSize int
}

// DefaultOptions returns the values used when nothing else is configured.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, MaxContext: DefaultMaxContext, BatchSize: DefaultBatchSize}
}

// Merge fills zero fields of o from defaults.
func (o Options) Merge(defaults Options) Options {
	if o.TopK == 0 {
		o.TopK = defaults.TopK
	}
	if o.MaxContext == 0 {
		o.MaxContext = defaults.MaxContext
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaults.BatchSize
	}
	return o
}

func (o Options) Validate() error {
	if o.TopK < 1 {
		return fmt.Errorf("topk must be at least 1, got %d", o.TopK)
	}
	if o.MaxContext < 1 {
		return fmt.Errorf("max context must be at least 1, got %d", o.MaxContext)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", o.BatchSize)
	}
	return nil
}
