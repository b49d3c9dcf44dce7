package toy

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/gltr/internal/model"
)

// Model scores a position as the projection of a distance-weighted average of
// the embeddings around it, plus the bias.
type Model struct {
	w      *Weights
	ignore map[int]struct{}
}

var (
	_ model.Model             = (*Model)(nil)
	_ model.PositionForwarder = (*Model)(nil)
)

// New returns a model over w. Tokens listed in ignore (typically the pad and
// mask ids) never contribute context.
func New(w *Weights, ignore ...int) *Model {
	set := make(map[int]struct{}, len(ignore))
	for _, id := range ignore {
		if id >= 0 {
			set[id] = struct{}{}
		}
	}
	return &Model{w: w, ignore: set}
}

func (m *Model) Weights() *Weights { return m.w }

func (m *Model) Forward(ctx context.Context, batch [][]int) ([][][]float32, error) {
	out := make([][][]float32, len(batch))
	for i, seq := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.checkIDs(seq); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = make([][]float32, len(seq))
		for p := range seq {
			out[i][p] = m.scoresAt(seq, p)
		}
	}
	return out, nil
}

func (m *Model) ForwardAt(ctx context.Context, batch [][]int, pos int) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, seq := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(seq) {
			return nil, fmt.Errorf("sequence %d: position %d outside length %d", i, pos, len(seq))
		}
		if err := m.checkIDs(seq); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = m.scoresAt(seq, pos)
	}
	return out, nil
}

func (m *Model) checkIDs(seq []int) error {
	v := m.w.Vocab()
	for p, id := range seq {
		if id < 0 || id >= v {
			return fmt.Errorf("token id %d at position %d outside vocabulary of %d", id, p, v)
		}
	}
	return nil
}

func (m *Model) scoresAt(seq []int, p int) []float32 {
	h := mat.NewVecDense(m.w.Hidden(), nil)
	var total float64
	add := func(j int) {
		if _, skip := m.ignore[seq[j]]; skip {
			return
		}
		wt := 1 / float64(1+abs(p-j))
		h.AddScaledVec(h, wt, m.w.Emb.RowView(seq[j]))
		total += wt
	}

	switch m.w.Kind {
	case Causal:
		for j := max(0, p-m.w.Window+1); j <= p; j++ {
			add(j)
		}
	case Masked:
		for j := max(0, p-m.w.Window); j <= min(len(seq)-1, p+m.w.Window); j++ {
			if j != p {
				add(j)
			}
		}
	}
	if total > 0 {
		h.ScaleVec(1/total, h)
	}

	logits := mat.NewVecDense(m.w.Vocab(), nil)
	logits.MulVec(m.w.Proj.T(), h)
	logits.AddVec(logits, m.w.Bias)
	return narrow(logits.RawVector().Data)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
