package logits

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"
)

// referenceRank mirrors the stable argsort + linear scan the ranking replaces.
func referenceRank(scores []float32, target int) int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	return slices.Index(idx, target)
}

func TestRankMatchesStableSort(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	scores := make([]float32, 257)
	for trial := 0; trial < 20; trial++ {
		for i := range scores {
			// Coarse values force plenty of exact ties.
			scores[i] = float32(rng.Intn(16))
		}
		for _, target := range []int{0, 1, 128, 256} {
			if got, want := RankOf(scores, target), referenceRank(scores, target); got != want {
				t.Fatalf("trial %d target %d: rank %d, want %d", trial, target, got, want)
			}
		}
	}
}

func TestRankZeroIffArgmax(t *testing.T) {
	t.Parallel()

	scores := []float32{0.5, 3, -1, 2.9, 3}
	r := NewRanker(3)
	for target := range scores {
		res, err := r.Rank(scores, target)
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if (res.Rank == 0) != (target == argmax(scores)) {
			t.Fatalf("target %d: rank %d, argmax %d", target, res.Rank, argmax(scores))
		}
	}
}

func TestRankTopK(t *testing.T) {
	t.Parallel()

	scores := []float32{1, 4, 2, 4, 0}
	tests := []struct {
		name string
		k    int
		want []int
	}{
		{name: "ties keep id order", k: 3, want: []int{1, 3, 2}},
		{name: "k beyond vocab", k: 10, want: []int{1, 3, 2, 0, 4}},
		{name: "zero", k: 0, want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewRanker(tt.k).Rank(scores, 2)
			if err != nil {
				t.Fatalf("rank: %v", err)
			}
			if !slices.Equal(res.TopIDs, tt.want) {
				t.Fatalf("top ids %v, want %v", res.TopIDs, tt.want)
			}
			if len(res.TopProbs) != len(res.TopIDs) {
				t.Fatalf("probs/ids length mismatch: %d vs %d", len(res.TopProbs), len(res.TopIDs))
			}
			for i := 1; i < len(res.TopProbs); i++ {
				if res.TopProbs[i] > res.TopProbs[i-1] {
					t.Fatalf("top probs not non-increasing: %v", res.TopProbs)
				}
			}
			if res.Rank != 2 {
				t.Fatalf("rank %d, want 2", res.Rank)
			}
		})
	}
}

func TestRankLargeKUsesStableSort(t *testing.T) {
	t.Parallel()

	scores := make([]float32, 300)
	for i := range scores {
		scores[i] = float32(i % 7)
	}
	res, err := NewRanker(insertionLimit + 10).Rank(scores, 5)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(res.TopIDs) != insertionLimit+10 {
		t.Fatalf("got %d ids", len(res.TopIDs))
	}
	small, _ := selectTop(scores, insertionLimit, 1, nil, nil)
	if !slices.Equal(res.TopIDs[:insertionLimit], small) {
		t.Fatalf("sort path and insertion path disagree")
	}
}

func TestRankRejectsBadTarget(t *testing.T) {
	t.Parallel()

	r := NewRanker(2)
	if _, err := r.Rank([]float32{1, 2}, 2); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := r.Rank(nil, 0); err == nil {
		t.Fatal("expected empty vector error")
	}
}

func TestSoftmaxAndRounding(t *testing.T) {
	t.Parallel()

	p := Softmax([]float32{1000, 1000, 998}, nil)
	var sum float64
	for _, v := range p {
		if v < 0 || v > 1 {
			t.Fatalf("probability out of range: %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("softmax sums to %v", sum)
	}

	res, err := NewRanker(3).Rank([]float32{0.1, 0.7, 0.2}, 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for _, v := range append([]float64{res.Prob}, res.TopProbs...) {
		if math.Abs(v*1e5-math.Round(v*1e5)) > 1e-6 {
			t.Fatalf("probability %v has more than %d decimals", v, Precision)
		}
	}
	if got := Round(0.123456); got != 0.12346 {
		t.Fatalf("Round(0.123456) = %v", got)
	}
}
