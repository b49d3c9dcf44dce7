package logits

import (
	"fmt"
	"math"
	"slices"
)

// Precision is the number of decimal places kept on every reported probability.
const Precision = 5

// insertionLimit bounds the k for which the O(V*K) insertion selection is used.
// Larger k falls back to a full stable sort of the index array.
const insertionLimit = 64

// Ranked describes one position's distribution relative to its ground-truth token.
type Ranked struct {
	// Rank is the zero-based position of the target in the descending,
	// stably sorted distribution. 0 means the target was the top choice.
	Rank int
	// Prob is the target's probability, rounded to Precision places.
	Prob float64
	// TopIDs holds the k most likely token ids, most likely first.
	TopIDs []int
	// TopProbs holds the rounded probabilities matching TopIDs.
	TopProbs []float64
}

// Ranker ranks score vectors against target ids. Scratch buffers are reused
// between calls, so a Ranker must not be shared between goroutines.
type Ranker struct {
	k      int
	prob   []float64
	topIdx []int
	topVal []float32
}

// NewRanker returns a Ranker reporting the k most likely alternatives.
func NewRanker(k int) *Ranker {
	return &Ranker{k: k}
}

// Rank softmax-normalizes scores and locates target inside the distribution.
//
// Ordering is by descending score with ties broken by ascending token id, which
// is what a stable descending sort of the vocabulary produces. The rank is
// therefore the number of entries scoring strictly higher than the target plus
// the number of equal-scoring entries with a lower id.
func (r *Ranker) Rank(scores []float32, target int) (Ranked, error) {
	if len(scores) == 0 {
		return Ranked{}, fmt.Errorf("rank: empty score vector")
	}
	if target < 0 || target >= len(scores) {
		return Ranked{}, fmt.Errorf("rank: target id %d out of range [0,%d)", target, len(scores))
	}

	r.prob = Softmax(scores, r.prob)

	k := min(r.k, len(scores))
	r.topIdx, r.topVal = selectTop(scores, k, 1, r.topIdx, r.topVal)

	out := Ranked{
		Rank:     RankOf(scores, target),
		Prob:     Round(r.prob[target]),
		TopIDs:   make([]int, len(r.topIdx)),
		TopProbs: make([]float64, len(r.topIdx)),
	}
	copy(out.TopIDs, r.topIdx)
	for i, id := range r.topIdx {
		out.TopProbs[i] = Round(r.prob[id])
	}
	return out, nil
}

// RankOf returns the stable descending rank of target within scores.
func RankOf(scores []float32, target int) int {
	v := scores[target]
	rank := 0
	for i, s := range scores {
		if s > v || (s == v && i < target) {
			rank++
		}
	}
	return rank
}

// Softmax writes the normalized distribution of scores into dst, growing it
// when needed, and returns it. The maximum is subtracted before
// exponentiation and the sum is accumulated in float64.
func Softmax(scores []float32, dst []float64) []float64 {
	if cap(dst) < len(scores) {
		dst = make([]float64, len(scores))
	}
	dst = dst[:len(scores)]
	if len(scores) == 0 {
		return dst
	}
	maxv := scores[argmax(scores)]
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - maxv))
		dst[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) {
		u := 1.0 / float64(len(scores))
		for i := range dst {
			dst[i] = u
		}
		return dst
	}
	inv := 1.0 / sum
	for i := range dst {
		dst[i] *= inv
	}
	return dst
}

// Round rounds p to Precision decimal places.
func Round(p float64) float64 {
	const scale = 1e5
	return math.Round(p*scale) / scale
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// selectTop returns the indices and scaled values of the k largest scores,
// largest first, ties keeping ascending index order. idx and val are reused
// as backing storage.
func selectTop(scores []float32, k int, scale float32, idx []int, val []float32) ([]int, []float32) {
	if k <= 0 {
		return idx[:0], val[:0]
	}
	if k > insertionLimit {
		return sortTop(scores, k, scale, idx, val)
	}
	if cap(idx) < k+1 {
		idx = make([]int, 0, k+1)
		val = make([]float32, 0, k+1)
	}
	idx = idx[:0]
	val = val[:0]

	for i, l := range scores {
		v := l * scale

		pos := len(val)
		for pos > 0 && val[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		idx = append(idx, 0)
		val = append(val, 0)

		copy(idx[pos+1:], idx[pos:])
		copy(val[pos+1:], val[pos:])
		idx[pos] = i
		val[pos] = v

		if len(val) > k {
			idx = idx[:k]
			val = val[:k]
		}
	}
	return idx, val
}

func sortTop(scores []float32, k int, scale float32, idx []int, val []float32) ([]int, []float32) {
	if cap(idx) < len(scores) {
		idx = make([]int, len(scores))
	}
	idx = idx[:len(scores)]
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	idx = idx[:min(k, len(idx))]
	if cap(val) < len(idx) {
		val = make([]float32, len(idx))
	}
	val = val[:len(idx)]
	for i, id := range idx {
		val[i] = scores[id] * scale
	}
	return idx, val
}
