// Package model defines the forward-pass contract the ranking pipelines run
// against. Concrete bindings live in subpackages.
package model

import (
	"context"
	"fmt"
)

// Model scores every position of every sequence in a batch.
type Model interface {
	// Forward returns scores indexed as [sequence][position][vocab]. Every
	// sequence in batch has its own entry and every position its own vector.
	Forward(ctx context.Context, batch [][]int) ([][][]float32, error)
}

// PositionForwarder is implemented by bindings that can return the scores of
// a single position per sequence without materializing the rest.
type PositionForwarder interface {
	ForwardAt(ctx context.Context, batch [][]int, pos int) ([][]float32, error)
}

// CacheReleaser is implemented by bindings holding accelerator memory that
// should be given back after each call.
type CacheReleaser interface {
	ReleaseCache(ctx context.Context) error
}

// ScoresAt returns the score vector at pos for each sequence of batch, using
// ForwardAt when m supports it.
func ScoresAt(ctx context.Context, m Model, batch [][]int, pos int) ([][]float32, error) {
	if pf, ok := m.(PositionForwarder); ok {
		out, err := pf.ForwardAt(ctx, batch, pos)
		if err != nil {
			return nil, err
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("forward at %d: got %d score vectors for %d sequences", pos, len(out), len(batch))
		}
		return out, nil
	}
	full, err := m.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}
	return pick(full, batch, pos)
}

// Release frees accelerator memory when m supports it.
func Release(ctx context.Context, m Model) error {
	if cr, ok := m.(CacheReleaser); ok {
		return cr.ReleaseCache(ctx)
	}
	return nil
}

// CheckShape verifies that scores has one vector per position of batch.
func CheckShape(batch [][]int, scores [][][]float32) error {
	if len(scores) != len(batch) {
		return fmt.Errorf("forward: got %d sequences for a batch of %d", len(scores), len(batch))
	}
	for i, seq := range batch {
		if len(scores[i]) != len(seq) {
			return fmt.Errorf("forward: sequence %d has %d score vectors for %d positions", i, len(scores[i]), len(seq))
		}
	}
	return nil
}

// CheckCausalShape verifies a next-token forward over one sequence. The last
// position predicts past the end of the text, so its vector may be omitted.
func CheckCausalShape(batch [][]int, scores [][][]float32) error {
	if len(scores) != len(batch) {
		return fmt.Errorf("forward: got %d sequences for a batch of %d", len(scores), len(batch))
	}
	for i, seq := range batch {
		if n := len(scores[i]); n < len(seq)-1 || n > len(seq) {
			return fmt.Errorf("forward: sequence %d has %d score vectors for %d positions", i, n, len(seq))
		}
	}
	return nil
}

func pick(full [][][]float32, batch [][]int, pos int) ([][]float32, error) {
	if err := CheckShape(batch, full); err != nil {
		return nil, err
	}
	out := make([][]float32, len(full))
	for i, seq := range full {
		if pos < 0 || pos >= len(seq) {
			return nil, fmt.Errorf("forward: position %d outside sequence %d of length %d", pos, i, len(seq))
		}
		out[i] = seq[pos]
	}
	return out, nil
}
