// Package tokenizer binds tokenizer files to the capability the ranking
// pipelines consume: splitting text into subword tokens and mapping tokens to
// and from vocabulary ids.
package tokenizer

import "fmt"

// Tokenizer is the opaque tokenizer collaborator.
type Tokenizer interface {
	// Tokenize splits text into raw subword tokens as they appear in the vocabulary.
	Tokenize(text string) ([]string, error)
	// TokensToIDs maps raw tokens to vocabulary ids.
	TokensToIDs(tokens []string) ([]int, error)
	// Token returns the raw token for id, or "" when id is out of range.
	Token(id int) string
	VocabSize() int
	Specials() Specials
}

// Specials holds the ids of the special tokens a vocabulary defines.
// Missing tokens are -1.
type Specials struct {
	BOS  int
	EOS  int
	CLS  int
	SEP  int
	Mask int
	Pad  int
	Unk  int
}

// NoSpecials returns a Specials with every id unset.
func NoSpecials() Specials {
	return Specials{BOS: -1, EOS: -1, CLS: -1, SEP: -1, Mask: -1, Pad: -1, Unk: -1}
}

// Encode tokenizes text and resolves the ids in one step.
func Encode(t Tokenizer, text string) ([]string, []int, error) {
	toks, err := t.Tokenize(text)
	if err != nil {
		return nil, nil, err
	}
	ids, err := t.TokensToIDs(toks)
	if err != nil {
		return nil, nil, err
	}
	return toks, ids, nil
}

func lookupIDs(encoder map[string]int, unk int, tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := encoder[tok]
		if !ok {
			if unk < 0 {
				return nil, fmt.Errorf("unknown token: %q", tok)
			}
			id = unk
		}
		ids[i] = id
	}
	return ids, nil
}

func lookupSpecial(encoder map[string]int, names ...string) int {
	for _, n := range names {
		if id, ok := encoder[n]; ok {
			return id
		}
	}
	return -1
}
