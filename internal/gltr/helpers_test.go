package gltr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samcharles93/gltr/internal/surface"
	"github.com/samcharles93/gltr/internal/tokenizer"
)

// wordTokenizer splits on whitespace. With spaced set, every word after the
// first carries the byte-level space marker.
type wordTokenizer struct {
	vocab  []string
	ids    map[string]int
	sp     tokenizer.Specials
	spaced bool
}

func newWordTokenizer(spaced bool, vocab ...string) *wordTokenizer {
	t := &wordTokenizer{vocab: vocab, ids: make(map[string]int), sp: tokenizer.NoSpecials(), spaced: spaced}
	for i, v := range vocab {
		t.ids[v] = i
		switch v {
		case "<|endoftext|>":
			t.sp.BOS, t.sp.EOS = i, i
		case "[CLS]":
			t.sp.CLS = i
		case "[SEP]":
			t.sp.SEP = i
		case "[MASK]":
			t.sp.Mask = i
		case "[PAD]":
			t.sp.Pad = i
		case "[UNK]":
			t.sp.Unk = i
		}
	}
	return t
}

func (t *wordTokenizer) Tokenize(text string) ([]string, error) {
	words := strings.Fields(text)
	if t.spaced {
		for i := 1; i < len(words); i++ {
			words[i] = surface.SpaceMarker + words[i]
		}
	}
	return words, nil
}

func (t *wordTokenizer) TokensToIDs(tokens []string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := t.ids[tok]
		if !ok {
			if t.sp.Unk < 0 {
				return nil, fmt.Errorf("unknown token %q", tok)
			}
			id = t.sp.Unk
		}
		out[i] = id
	}
	return out, nil
}

func (t *wordTokenizer) Token(id int) string {
	if id < 0 || id >= len(t.vocab) {
		return ""
	}
	return t.vocab[id]
}

func (t *wordTokenizer) VocabSize() int               { return len(t.vocab) }
func (t *wordTokenizer) Specials() tokenizer.Specials { return t.sp }

// scriptModel scores every position with fn and records what it was asked.
type scriptModel struct {
	vocab int
	fn    func(seq []int, pos int) []float32
	err   error
	// drop trims that many trailing vectors from every sequence.
	drop int
	// onForward runs before every forward pass.
	onForward func(call int)

	mu       sync.Mutex
	batches  [][][]int
	releases int
}

func (m *scriptModel) Forward(_ context.Context, batch [][]int) ([][][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, batch)
	call := len(m.batches)
	m.mu.Unlock()
	if m.onForward != nil {
		m.onForward(call)
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][][]float32, len(batch))
	for i, seq := range batch {
		out[i] = make([][]float32, max(len(seq)-m.drop, 0))
		for p := range out[i] {
			out[i][p] = m.fn(seq, p)
		}
	}
	return out, nil
}

func (m *scriptModel) ReleaseCache(context.Context) error {
	m.mu.Lock()
	m.releases++
	m.mu.Unlock()
	return nil
}

// positional adds ForwardAt to a scriptModel and records requested positions.
type positional struct {
	*scriptModel
	positions []int
}

func (m *positional) ForwardAt(ctx context.Context, batch [][]int, pos int) ([][]float32, error) {
	m.positions = append(m.positions, pos)
	full, err := m.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(full))
	for i := range full {
		out[i] = full[i][pos]
	}
	return out, nil
}

// ascending scores token v as v, so token v has rank vocab-1-v.
func ascending(vocab int) func([]int, int) []float32 {
	return func([]int, int) []float32 {
		s := make([]float32, vocab)
		for v := range s {
			s[v] = float32(v)
		}
		return s
	}
}

// nextID predicts seq[pos]+1 with scores falling off with distance.
func nextID(vocab int) func([]int, int) []float32 {
	return func(seq []int, pos int) []float32 {
		want := seq[pos] + 1
		s := make([]float32, vocab)
		for v := range s {
			d := v - want
			if d < 0 {
				d = -d
			}
			s[v] = -float32(d)
		}
		return s
	}
}
