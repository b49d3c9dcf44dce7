// Package toy provides small deterministic language models that run locally.
// They produce score vectors with the same shape as a real network, so the
// ranking pipelines can be exercised end to end without an inference server.
package toy

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/gltr/internal/safetensors"
)

// Kind selects how a toy model gathers context around a position.
type Kind string

const (
	// Causal models see the position itself and up to Window-1 tokens before it.
	Causal Kind = "causal"
	// Masked models see up to Window tokens on each side, never the position.
	Masked Kind = "masked"
)

const (
	tensorEmbed = "embed.weight"
	tensorProj  = "proj.weight"
	tensorBias  = "proj.bias"

	metaKind   = "kind"
	metaWindow = "window"
)

// Weights holds the parameters of a toy model: an embedding table, a
// projection back onto the vocabulary and a bias.
type Weights struct {
	Kind   Kind
	Window int
	Emb    *mat.Dense    // vocab x hidden
	Proj   *mat.Dense    // hidden x vocab
	Bias   *mat.VecDense // vocab
}

// NewWeights returns pseudo-random weights that depend only on the arguments.
func NewWeights(kind Kind, vocab, hidden, window int, seed uint64) (*Weights, error) {
	if vocab <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("toy weights: vocab and hidden must be positive (got %d, %d)", vocab, hidden)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fill := func(n int, scale float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = rng.NormFloat64() * scale
		}
		return out
	}
	return FromMatrices(kind, window,
		mat.NewDense(vocab, hidden, fill(vocab*hidden, 1)),
		mat.NewDense(hidden, vocab, fill(hidden*vocab, 1)),
		mat.NewVecDense(vocab, fill(vocab, 0.1)),
	)
}

// FromMatrices validates and wraps explicit parameters.
func FromMatrices(kind Kind, window int, emb, proj *mat.Dense, bias *mat.VecDense) (*Weights, error) {
	if kind != Causal && kind != Masked {
		return nil, fmt.Errorf("toy weights: unknown kind %q", kind)
	}
	if window <= 0 {
		return nil, fmt.Errorf("toy weights: window must be positive, got %d", window)
	}
	vocab, hidden := emb.Dims()
	if r, c := proj.Dims(); r != hidden || c != vocab {
		return nil, fmt.Errorf("toy weights: projection is %dx%d, want %dx%d", r, c, hidden, vocab)
	}
	if bias.Len() != vocab {
		return nil, fmt.Errorf("toy weights: bias has %d entries, want %d", bias.Len(), vocab)
	}
	return &Weights{Kind: kind, Window: window, Emb: emb, Proj: proj, Bias: bias}, nil
}

func (w *Weights) Vocab() int {
	r, _ := w.Emb.Dims()
	return r
}

func (w *Weights) Hidden() int {
	_, c := w.Emb.Dims()
	return c
}

// Save writes the weights to a safetensors file.
func (w *Weights) Save(path string) error {
	vocab, hidden := w.Vocab(), w.Hidden()
	meta := map[string]string{
		metaKind:   string(w.Kind),
		metaWindow: strconv.Itoa(w.Window),
	}
	return safetensors.WriteFile(path, meta, []safetensors.F32Tensor{
		{Name: tensorEmbed, Shape: []int{vocab, hidden}, Data: narrow(w.Emb.RawMatrix().Data)},
		{Name: tensorProj, Shape: []int{hidden, vocab}, Data: narrow(w.Proj.RawMatrix().Data)},
		{Name: tensorBias, Shape: []int{vocab}, Data: narrow(w.Bias.RawVector().Data)},
	})
}

// Load reads weights written by Save.
func Load(path string) (*Weights, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load toy weights: %w", err)
	}
	window, err := strconv.Atoi(f.Metadata[metaWindow])
	if err != nil {
		return nil, fmt.Errorf("load toy weights: bad %s metadata: %w", metaWindow, err)
	}
	read := func(name string, dims int) ([]float64, []int, error) {
		data, info, err := f.ReadTensorF32(name)
		if err != nil {
			return nil, nil, err
		}
		if len(info.Shape) != dims {
			return nil, nil, fmt.Errorf("tensor %s: want %d dims, got shape %v", name, dims, info.Shape)
		}
		return widen(data), info.Shape, nil
	}
	emb, es, err := read(tensorEmbed, 2)
	if err != nil {
		return nil, fmt.Errorf("load toy weights: %w", err)
	}
	proj, ps, err := read(tensorProj, 2)
	if err != nil {
		return nil, fmt.Errorf("load toy weights: %w", err)
	}
	bias, bs, err := read(tensorBias, 1)
	if err != nil {
		return nil, fmt.Errorf("load toy weights: %w", err)
	}
	return FromMatrices(Kind(f.Metadata[metaKind]), window,
		mat.NewDense(es[0], es[1], emb),
		mat.NewDense(ps[0], ps[1], proj),
		mat.NewVecDense(bs[0], bias),
	)
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
