package gltr

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Payload is the result of one ranking call. Tokens, Ranks and TopK are
// parallel: entry i describes the i-th evaluated position.
type Payload struct {
	// Tokens holds the surface form of every evaluated token.
	Tokens []string `json:"bpe_strings"`
	// Ranks holds the rank and probability of every evaluated token.
	Ranks []RankEntry `json:"real_topk"`
	// TopK holds the most likely alternatives at every evaluated position.
	TopK [][]Alternative `json:"pred_topk"`
	// Lead holds the surface forms of text tokens that precede the first
	// evaluated position (the first token of a causal run).
	Lead []string `json:"lead_strings,omitempty"`
}

// Len returns the number of evaluated positions.
func (p *Payload) Len() int { return len(p.Ranks) }

// RankEntry is encoded as a [rank, probability] pair.
type RankEntry struct {
	Rank int
	Prob float64
}

func (r RankEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Rank, r.Prob})
}

func (r *RankEntry) UnmarshalJSON(b []byte) error {
	var raw []float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("rank entry: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("rank entry: want [rank, prob], got %d values", len(raw))
	}
	r.Rank = int(raw[0])
	r.Prob = raw[1]
	return nil
}

// Alternative is encoded as a [token, probability] pair.
type Alternative struct {
	Token string
	Prob  float64
}

func (a Alternative) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{a.Token, a.Prob})
}

func (a *Alternative) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("alternative: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("alternative: want [token, prob], got %d values", len(raw))
	}
	if err := json.Unmarshal(raw[0], &a.Token); err != nil {
		return fmt.Errorf("alternative token: %w", err)
	}
	if err := json.Unmarshal(raw[1], &a.Prob); err != nil {
		return fmt.Errorf("alternative prob: %w", err)
	}
	return nil
}
