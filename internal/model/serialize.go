package model

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Serialized wraps a Model so that at most one forward pass runs at a time.
// Callers waiting for the slot give up when their context ends.
type Serialized struct {
	inner Model
	sem   *semaphore.Weighted
}

// Serialize returns m guarded by a single-slot semaphore. Wrapping an already
// serialized model returns it unchanged.
func Serialize(m Model) *Serialized {
	if s, ok := m.(*Serialized); ok {
		return s
	}
	return &Serialized{inner: m, sem: semaphore.NewWeighted(1)}
}

// Unwrap returns the guarded model.
func (s *Serialized) Unwrap() Model { return s.inner }

func (s *Serialized) Forward(ctx context.Context, batch [][]int) ([][][]float32, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.inner.Forward(ctx, batch)
}

// ForwardAt delegates to the inner model, falling back to a full forward pass
// when it has no positional entry point.
func (s *Serialized) ForwardAt(ctx context.Context, batch [][]int, pos int) ([][]float32, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return ScoresAt(ctx, s.inner, batch, pos)
}

func (s *Serialized) ReleaseCache(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return Release(ctx, s.inner)
}
