package tokenizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
)

// bpeCacheSize bounds the number of pre-tokenized words whose merges are memoized.
const bpeCacheSize = 32768

// gpt2Pattern is the GPT-2 pre-tokenizer split. Go regexp does not support
// lookahead, so the trailing whitespace branch is collapsed into \s+.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// ByteLevel is a GPT-2 style byte-level BPE tokenizer. Every input byte is
// mapped to a printable rune before merges are applied, so raw tokens carry
// artifacts such as the "Ġ" leading-space marker.
type ByteLevel struct {
	encoder  map[string]int
	decoder  []string
	bpeRanks map[Pair]int
	cache    *lru.Cache
	pattern  *regexp.Regexp
	specials Specials
	special  []string
}

type byteLevelJSON struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		Merges   []any          `json:"merges"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	PreTokenizer struct {
		Type          string `json:"type"`
		Pretokenizers []struct {
			Type    string `json:"type"`
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	} `json:"pre_tokenizer"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// NewByteLevel builds a tokenizer from an id-ordered token list and merge rules
// in "a b" form. pattern overrides the pre-tokenizer split when non-empty.
func NewByteLevel(tokens []string, merges []string, pattern string) (*ByteLevel, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token list")
	}
	encoder := make(map[string]int, len(tokens))
	for i, t := range tokens {
		encoder[t] = i
	}
	return newByteLevel(encoder, append([]string(nil), tokens...), parseMerges(merges), pattern, "")
}

// LoadGPT2Files loads the vocab.json + merges.txt pair shipped with GPT-2 style models.
func LoadGPT2Files(vocabPath, mergesPath string) (*ByteLevel, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("load vocab.json: %w", err)
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab.json: %w", err)
	}
	mergeBytes, err := os.ReadFile(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("load merges.txt: %w", err)
	}
	decoder, err := invertVocab(vocab)
	if err != nil {
		return nil, err
	}
	return newByteLevel(vocab, decoder, parseMerges(strings.Split(string(mergeBytes), "\n")), "", "")
}

// LoadByteLevelJSON loads a HuggingFace tokenizer.json whose model type is BPE.
func LoadByteLevelJSON(path string) (*ByteLevel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseByteLevelJSON(data)
}

// ParseByteLevelJSON parses tokenizer.json content whose model type is BPE.
func ParseByteLevelJSON(data []byte) (*ByteLevel, error) {
	var tj byteLevelJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if strings.ToUpper(tj.Model.Type) != "BPE" {
		return nil, fmt.Errorf("unsupported tokenizer model for byte-level family: %s", tj.Model.Type)
	}

	encoder := make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens))
	for tok, id := range tj.Model.Vocab {
		encoder[tok] = id
	}
	for _, at := range tj.AddedTokens {
		encoder[at.Content] = at.ID
	}
	decoder, err := invertVocab(encoder)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(tj.Model.Merges))
	for _, raw := range tj.Model.Merges {
		switch v := raw.(type) {
		case string:
			lines = append(lines, v)
		case []any:
			if len(v) == 2 {
				a, aok := v[0].(string)
				b, bok := v[1].(string)
				if aok && bok {
					lines = append(lines, a+" "+b)
				}
			}
		}
	}

	pattern := ""
	if tj.PreTokenizer.Type == "Sequence" {
		for _, p := range tj.PreTokenizer.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pattern = p.Pattern.Regex
				break
			}
		}
	}
	return newByteLevel(encoder, decoder, parseMerges(lines), pattern, tj.Model.UnkToken)
}

func newByteLevel(encoder map[string]int, decoder []string, ranks map[Pair]int, pattern, unkToken string) (*ByteLevel, error) {
	// Lookahead patterns (Llama 3 style) are not supported by Go regexp.
	if pattern == "" || strings.Contains(pattern, "(?!") {
		pattern = gpt2Pattern
	}
	pat, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pre-tokenizer pattern: %w", err)
	}
	cache, err := lru.New(bpeCacheSize)
	if err != nil {
		return nil, err
	}

	sp := NoSpecials()
	sp.BOS = lookupSpecial(encoder, "<|endoftext|>", "<s>", "<|begin_of_text|>")
	sp.EOS = lookupSpecial(encoder, "<|endoftext|>", "</s>", "<|end_of_text|>")
	sp.Pad = lookupSpecial(encoder, "<pad>", "<|pad|>")
	sp.Unk = lookupSpecial(encoder, unkToken, "<unk>", "<|unk|>")

	return &ByteLevel{
		encoder:  encoder,
		decoder:  decoder,
		bpeRanks: ranks,
		cache:    cache,
		pattern:  pat,
		specials: sp,
		special:  collectSpecials(decoder),
	}, nil
}

// Tokenize implements Tokenizer.
func (t *ByteLevel) Tokenize(text string) ([]string, error) {
	var out []string
	for _, part := range splitSpecials(text, t.special) {
		if part.isSpecial {
			out = append(out, part.text)
			continue
		}
		for _, word := range t.pattern.FindAllString(part.text, -1) {
			out = append(out, t.bpe(byteEncode(word))...)
		}
	}
	return out, nil
}

// TokensToIDs implements Tokenizer.
func (t *ByteLevel) TokensToIDs(tokens []string) ([]int, error) {
	return lookupIDs(t.encoder, t.specials.Unk, tokens)
}

// Decode joins the tokens for ids and reverses the byte-level mapping.
func (t *ByteLevel) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		token := t.decoder[id]
		if isSpecialToken(token) {
			b = append(b, token...)
			continue
		}
		b = append(b, ByteDecode(token)...)
	}
	return string(b), nil
}

func (t *ByteLevel) Token(id int) string {
	if id < 0 || id >= len(t.decoder) {
		return ""
	}
	return t.decoder[id]
}

func (t *ByteLevel) VocabSize() int     { return len(t.decoder) }
func (t *ByteLevel) Specials() Specials { return t.specials }

func (t *ByteLevel) bpe(token string) []string {
	if v, ok := t.cache.Get(token); ok {
		return v.([]string)
	}
	word := splitRunes(token)
	pairs := getPairs(word)
	for len(pairs) > 0 {
		bestRank := int(^uint(0) >> 1)
		bestPair := Pair{}
		found := false
		for p := range pairs {
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				bestRank = rank
				bestPair = p
				found = true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, bestPair)
		if len(word) == 1 {
			break
		}
		pairs = getPairs(word)
	}
	t.cache.Add(token, word)
	return word
}

func parseMerges(lines []string) map[Pair]int {
	ranks := make(map[Pair]int, len(lines))
	rank := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		p := Pair{A: parts[0], B: parts[1]}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}
	return ranks
}

func invertVocab(vocab map[string]int) ([]string, error) {
	maxID := -1
	for _, id := range vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d in vocabulary", id)
		}
		maxID = max(maxID, id)
	}
	if maxID < 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	decoder := make([]string, maxID+1)
	for tok, id := range vocab {
		decoder[id] = tok
	}
	return decoder, nil
}
