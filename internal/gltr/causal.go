package gltr

import (
	"context"
	"fmt"

	"github.com/samcharles93/gltr/internal/model"
)

// CausalChecker ranks each token against the model's prediction from the
// tokens before it. The whole text is scored in a single forward pass.
type CausalChecker struct {
	pipeline
}

var _ Checker = (*CausalChecker)(nil)

func NewCausal(c Components) (*CausalChecker, error) {
	p, err := newPipeline(Causal, c)
	if err != nil {
		return nil, err
	}
	return &CausalChecker{pipeline: p}, nil
}

// CheckProbabilities evaluates tokens 1..N-1; token 0 has nothing before it
// and is reported in Payload.Lead.
func (c *CausalChecker) CheckProbabilities(ctx context.Context, text string, opts Options) (payload *Payload, err error) {
	r, err := c.begin(opts)
	if err != nil {
		return nil, err
	}
	defer func() { c.finish(ctx, r, payload, err) }()

	ids, err := c.encode(text)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, ErrEmptyInput
	case 1:
		return nil, fmt.Errorf("%w: a single token has no successor to rank", ErrEmptyInput)
	}
	r.log.Debug("encoded", "tokens", len(ids))

	batch := [][]int{ids}
	scores, err := c.model.Forward(ctx, batch)
	if err != nil {
		return nil, invocationError("causal forward", err)
	}
	if err := model.CheckCausalShape(batch, scores); err != nil {
		return nil, invocationError("causal forward", err)
	}

	b := c.newBuilder(r, len(ids)-1)
	for p := 0; p < len(ids)-1; p++ {
		if err := b.add(scores[0][p], ids[p+1]); err != nil {
			return nil, invocationError(fmt.Sprintf("ranking position %d", p), err)
		}
	}
	b.out.Lead = []string{c.surface(r.log, ids[0])}
	return b.out, nil
}
