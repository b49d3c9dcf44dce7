package gltr

import (
	"context"
	"fmt"

	"github.com/samcharles93/gltr/internal/model"
)

// MaskedChecker ranks each token against the model's prediction for that
// position when it is hidden behind the mask token. Every position gets its
// own fixed-width window, and windows are scored in sequential batches.
type MaskedChecker struct {
	pipeline
	cls, sep, mask, pad int
}

var _ Checker = (*MaskedChecker)(nil)

// NewMasked requires the tokenizer to define CLS, SEP, mask and pad ids.
func NewMasked(c Components) (*MaskedChecker, error) {
	p, err := newPipeline(Masked, c)
	if err != nil {
		return nil, err
	}
	sp := c.Tokenizer.Specials()
	for name, id := range map[string]int{"cls": sp.CLS, "sep": sp.SEP, "mask": sp.Mask, "pad": sp.Pad} {
		if id < 0 {
			return nil, fmt.Errorf("masked checker: tokenizer has no %s token", name)
		}
	}
	return &MaskedChecker{pipeline: p, cls: sp.CLS, sep: sp.SEP, mask: sp.Mask, pad: sp.Pad}, nil
}

// CheckProbabilities evaluates every token between the CLS and SEP markers.
func (c *MaskedChecker) CheckProbabilities(ctx context.Context, text string, opts Options) (payload *Payload, err error) {
	r, err := c.begin(opts)
	if err != nil {
		return nil, err
	}
	defer func() { c.finish(ctx, r, payload, err) }()

	body, err := c.encode(text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(body)+2)
	ids = append(ids, c.cls)
	ids = append(ids, body...)
	ids = append(ids, c.sep)
	if len(ids) <= 2 {
		return nil, ErrEmptyInput
	}

	radius, size := r.opts.MaxContext, r.opts.BatchSize
	targets := len(ids) - 2
	r.log.Debug("encoded", "tokens", len(ids), "targets", targets, "batches", (targets+size-1)/size)

	b := c.newBuilder(r, targets)
	for i, bt := range planBatches(len(ids), size) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		windows := make([][]int, 0, bt.end-bt.start)
		for p := bt.start; p < bt.end; p++ {
			windows = append(windows, maskedWindow(ids, p, radius, c.mask, c.pad))
		}
		op := fmt.Sprintf("masked forward batch %d", i)
		scores, err := model.ScoresAt(ctx, c.model, windows, radius)
		if err != nil {
			return nil, invocationError(op, err)
		}
		if len(scores) != len(windows) {
			return nil, invocationError(op, fmt.Errorf("got %d score vectors for %d windows", len(scores), len(windows)))
		}
		for j, p := 0, bt.start; p < bt.end; j, p = j+1, p+1 {
			if err := b.add(scores[j], ids[p]); err != nil {
				return nil, invocationError(fmt.Sprintf("ranking position %d", p), err)
			}
		}
	}
	return b.out, nil
}

// batchSpan covers target positions [start, end) of one forward pass.
type batchSpan struct {
	start, end int
}

// planBatches splits targets 1..n-2 into consecutive spans of at most size.
func planBatches(n, size int) []batchSpan {
	var spans []batchSpan
	for start := 1; start < n-1; start += size {
		spans = append(spans, batchSpan{start: start, end: min(start+size, n-1)})
	}
	return spans
}

// maskedWindow returns the 2*radius+1 tokens centered on p with p replaced
// by mask. Slots that fall outside ids hold pad, which covers documents
// shorter than the window on either or both sides.
func maskedWindow(ids []int, p, radius, mask, pad int) []int {
	w := make([]int, 2*radius+1)
	for off := range w {
		switch src := p - radius + off; {
		case src == p:
			w[off] = mask
		case src < 0 || src >= len(ids):
			w[off] = pad
		default:
			w[off] = ids[src]
		}
	}
	return w
}
