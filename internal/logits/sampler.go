package logits

import (
	"math"
	"math/rand"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed        int64
	Temperature float32
	// TopK truncates the distribution to the k most likely tokens before
	// sampling. Zero or negative keeps the whole vocabulary.
	TopK int
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Sample draws a single index from the provided logits vector:
//
//  1. With a non-positive temperature, or TopK==1, argmax is returned.
//  2. Otherwise logits are scaled by the inverse temperature and the top k
//     are kept (all of them when TopK is unset).
//  3. A softmax over the shortlist is sampled with the seeded generator.
func (s *Sampler) Sample(logits []float32) int {
	if len(logits) == 0 {
		return 0
	}
	if s.greedy || s.cfg.TopK == 1 {
		return argmax(logits)
	}

	k := s.cfg.TopK
	if k <= 0 || k > len(logits) {
		k = len(logits)
	}
	s.topIdx, s.topVal = selectTop(logits, k, 1/s.cfg.Temperature, s.topIdx, s.topVal)
	topIdx, topVal := s.topIdx, s.topVal

	maxv := topVal[0]
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}

	r := s.rng.Float64() * sum
	var c float64
	for i := range prob {
		c += prob[i]
		if r <= c {
			return topIdx[i]
		}
	}
	return topIdx[len(topIdx)-1]
}
