// Package gltr ranks every token of a text against the predictions of a
// language model. A causal checker compares each position with the token that
// follows it; a masked checker hides one token at a time and asks the model to
// fill it in.
package gltr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/gltr/internal/logger"
	"github.com/samcharles93/gltr/internal/logits"
	"github.com/samcharles93/gltr/internal/model"
	"github.com/samcharles93/gltr/internal/surface"
	"github.com/samcharles93/gltr/internal/tokenizer"
)

// Checker produces a ranking payload for a text.
type Checker interface {
	CheckProbabilities(ctx context.Context, text string, opts Options) (*Payload, error)
}

// Components are the collaborators a checker is built from.
type Components struct {
	Tokenizer tokenizer.Tokenizer
	// Normalizer runs before tokenization. Nil leaves text unchanged.
	Normalizer    tokenizer.Normalizer
	Postprocessor *surface.Postprocessor
	Model         model.Model
	// Defaults fill zero fields of per-call Options.
	Defaults Options
	Logger   logger.Logger
}

// pipeline holds what the causal and masked checkers share.
type pipeline struct {
	kind     Kind
	tok      tokenizer.Tokenizer
	norm     tokenizer.Normalizer
	post     *surface.Postprocessor
	model    model.Model
	defaults Options
	log      logger.Logger
}

func newPipeline(kind Kind, c Components) (pipeline, error) {
	if c.Tokenizer == nil {
		return pipeline{}, errors.New("checker: tokenizer is required")
	}
	if c.Model == nil {
		return pipeline{}, errors.New("checker: model is required")
	}
	if c.Postprocessor == nil {
		return pipeline{}, errors.New("checker: postprocessor is required")
	}
	p := pipeline{
		kind:     kind,
		tok:      c.Tokenizer,
		norm:     c.Normalizer,
		post:     c.Postprocessor,
		model:    c.Model,
		defaults: c.Defaults.Merge(DefaultOptions()),
		log:      c.Logger,
	}
	if p.norm == nil {
		p.norm = tokenizer.Identity
	}
	if p.log == nil {
		p.log = logger.Discard()
	}
	if err := p.defaults.Validate(); err != nil {
		return pipeline{}, fmt.Errorf("checker defaults: %w", err)
	}
	return p, nil
}

// run is the per-call state shared by both pipelines.
type run struct {
	opts  Options
	log   logger.Logger
	start time.Time
}

// begin validates before any forward pass, so a rejected call has no cache to
// release and callers return without finish.
func (p *pipeline) begin(opts Options) (*run, error) {
	opts = opts.Merge(p.defaults)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &run{
		opts:  opts,
		log:   p.log.With("run_id", uuid.NewString(), "kind", string(p.kind)),
		start: time.Now(),
	}, nil
}

// finish releases accelerator memory whatever the outcome of the call.
func (p *pipeline) finish(ctx context.Context, r *run, payload *Payload, err error) {
	if rerr := model.Release(context.WithoutCancel(ctx), p.model); rerr != nil {
		r.log.Warn("release model cache", "err", rerr)
	}
	if err != nil {
		r.log.Debug("check failed", "err", err, "elapsed", time.Since(r.start))
		return
	}
	r.log.Debug("check done", "positions", payload.Len(), "topk", r.opts.TopK, "elapsed", time.Since(r.start))
}

// encode normalizes and tokenizes text into vocabulary ids.
func (p *pipeline) encode(text string) ([]int, error) {
	_, ids, err := tokenizer.Encode(p.tok, p.norm.Normalize(text))
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return ids, nil
}

func (p *pipeline) surface(log logger.Logger, id int) string {
	tok := p.tok.Token(id)
	s, err := p.post.Surface(tok)
	if err != nil {
		log.Debug("keeping raw token", "id", id, "token", tok, "err", err)
		return tok
	}
	return s
}

// builder accumulates payload entries one evaluated position at a time.
type builder struct {
	p      *pipeline
	log    logger.Logger
	ranker *logits.Ranker
	out    *Payload
}

func (p *pipeline) newBuilder(r *run, n int) *builder {
	return &builder{
		p:      p,
		log:    r.log,
		ranker: logits.NewRanker(r.opts.TopK),
		out: &Payload{
			Tokens: make([]string, 0, n),
			Ranks:  make([]RankEntry, 0, n),
			TopK:   make([][]Alternative, 0, n),
		},
	}
}

// add ranks target inside scores and appends the position to the payload.
func (b *builder) add(scores []float32, target int) error {
	r, err := b.ranker.Rank(scores, target)
	if err != nil {
		return err
	}
	alts := make([]Alternative, len(r.TopIDs))
	for i, id := range r.TopIDs {
		alts[i] = Alternative{Token: b.p.surface(b.log, id), Prob: r.TopProbs[i]}
	}
	b.out.Tokens = append(b.out.Tokens, b.p.surface(b.log, target))
	b.out.Ranks = append(b.out.Ranks, RankEntry{Rank: r.Rank, Prob: r.Prob})
	b.out.TopK = append(b.out.TopK, alts)
	return nil
}
