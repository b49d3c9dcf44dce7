package gltr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/gltr/internal/logits"
	"github.com/samcharles93/gltr/internal/model"
	"github.com/samcharles93/gltr/internal/tokenizer"
)

const (
	DefaultSampleLength      = 100
	DefaultSampleTopK        = 5
	DefaultSampleTemperature = 1.0
)

// SampleOptions controls unconditional generation. Zero fields take the
// defaults above; use TopK 1 for greedy decoding.
type SampleOptions struct {
	Length      int
	TopK        int
	Temperature float64
	Seed        int64
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.Length == 0 {
		o.Length = DefaultSampleLength
	}
	if o.TopK == 0 {
		o.TopK = DefaultSampleTopK
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultSampleTemperature
	}
	return o
}

type decoder interface {
	Decode(ids []int) (string, error)
}

// Sample generates Length tokens from a causal model, starting from the
// tokenizer's beginning-of-text token. The start token is not part of the
// returned text.
func Sample(ctx context.Context, tok tokenizer.Tokenizer, m model.Model, opts SampleOptions) (string, error) {
	opts = opts.withDefaults()
	if opts.Length < 0 || opts.TopK < 0 || opts.Temperature < 0 {
		return "", fmt.Errorf("sample: negative option in %+v", opts)
	}
	start := tok.Specials().BOS
	if start < 0 {
		return "", errors.New("sample: tokenizer has no beginning-of-text token")
	}

	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:        opts.Seed,
		Temperature: float32(opts.Temperature),
		TopK:        opts.TopK,
	})
	seq := make([]int, 1, opts.Length+1)
	seq[0] = start
	for i := 0; i < opts.Length; i++ {
		scores, err := model.ScoresAt(ctx, m, [][]int{seq}, len(seq)-1)
		if err != nil {
			return "", invocationError(fmt.Sprintf("sampling step %d", i), err)
		}
		seq = append(seq, sampler.Sample(scores[0]))
	}
	if err := model.Release(context.WithoutCancel(ctx), m); err != nil {
		return "", invocationError("release cache", err)
	}

	out := seq[1:]
	if d, ok := tok.(decoder); ok {
		return d.Decode(out)
	}
	var b strings.Builder
	for _, id := range out {
		b.WriteString(tok.Token(id))
	}
	return b.String(), nil
}
