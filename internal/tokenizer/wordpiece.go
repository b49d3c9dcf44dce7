package tokenizer

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	json "github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// DefaultContinuationPrefix marks a WordPiece token that continues the previous one.
const DefaultContinuationPrefix = "##"

const defaultMaxInputCharsPerWord = 100

// WordPieceOptions configures basic tokenization ahead of the WordPiece split.
type WordPieceOptions struct {
	Lowercase    bool
	StripAccents bool
	// Prefix overrides DefaultContinuationPrefix.
	Prefix string
	// MaxInputCharsPerWord maps longer words to the unknown token.
	MaxInputCharsPerWord int
}

// WordPiece is a BERT style tokenizer: whitespace and punctuation splitting
// followed by greedy longest-match-first subword lookup.
type WordPiece struct {
	vocab    map[string]int
	inv      []string
	opts     WordPieceOptions
	specials Specials
	// bracketed holds the [XXX] tokens that are never split.
	bracketed map[string]struct{}
}

type wordPieceJSON struct {
	Model struct {
		Type                    string         `json:"type"`
		Vocab                   map[string]int `json:"vocab"`
		UnkToken                string         `json:"unk_token"`
		ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
		MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
	} `json:"model"`
	Normalizer *struct {
		Type         string `json:"type"`
		Lowercase    bool   `json:"lowercase"`
		StripAccents *bool  `json:"strip_accents"`
	} `json:"normalizer"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
}

// NewWordPiece builds a tokenizer from an id-ordered token list.
func NewWordPiece(tokens []string, opts WordPieceOptions) (*WordPiece, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token list")
	}
	vocab := make(map[string]int, len(tokens))
	for i, t := range tokens {
		if _, dup := vocab[t]; !dup {
			vocab[t] = i
		}
	}
	return newWordPiece(vocab, append([]string(nil), tokens...), opts), nil
}

// LoadVocabTxt loads a BERT vocab.txt (one token per line, id = line number).
func LoadVocabTxt(path string, opts WordPieceOptions) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load vocab.txt: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab.txt: %w", err)
	}
	return NewWordPiece(tokens, opts)
}

// LoadWordPieceJSON loads a HuggingFace tokenizer.json whose model type is WordPiece.
func LoadWordPieceJSON(path string) (*WordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWordPieceJSON(data)
}

// ParseWordPieceJSON parses tokenizer.json content whose model type is WordPiece.
func ParseWordPieceJSON(data []byte) (*WordPiece, error) {
	var tj wordPieceJSON
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if tj.Model.Type != "WordPiece" {
		return nil, fmt.Errorf("unsupported tokenizer model for continuation family: %s", tj.Model.Type)
	}
	vocab := make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens))
	for tok, id := range tj.Model.Vocab {
		vocab[tok] = id
	}
	for _, at := range tj.AddedTokens {
		vocab[at.Content] = at.ID
	}
	inv, err := invertVocab(vocab)
	if err != nil {
		return nil, err
	}
	opts := WordPieceOptions{
		Prefix:               tj.Model.ContinuingSubwordPrefix,
		MaxInputCharsPerWord: tj.Model.MaxInputCharsPerWord,
	}
	if n := tj.Normalizer; n != nil && n.Type == "BertNormalizer" {
		opts.Lowercase = n.Lowercase
		// BertNormalizer strips accents whenever it lowercases unless told otherwise.
		opts.StripAccents = n.Lowercase
		if n.StripAccents != nil {
			opts.StripAccents = *n.StripAccents
		}
	}
	return newWordPiece(vocab, inv, opts), nil
}

func newWordPiece(vocab map[string]int, inv []string, opts WordPieceOptions) *WordPiece {
	if opts.Prefix == "" {
		opts.Prefix = DefaultContinuationPrefix
	}
	if opts.MaxInputCharsPerWord <= 0 {
		opts.MaxInputCharsPerWord = defaultMaxInputCharsPerWord
	}
	sp := NoSpecials()
	sp.CLS = lookupSpecial(vocab, "[CLS]")
	sp.SEP = lookupSpecial(vocab, "[SEP]")
	sp.Mask = lookupSpecial(vocab, "[MASK]")
	sp.Pad = lookupSpecial(vocab, "[PAD]")
	sp.Unk = lookupSpecial(vocab, "[UNK]")
	sp.BOS = sp.CLS
	sp.EOS = sp.SEP

	bracketed := make(map[string]struct{})
	for tok := range vocab {
		if len(tok) > 2 && strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
			bracketed[tok] = struct{}{}
		}
	}
	return &WordPiece{vocab: vocab, inv: inv, opts: opts, specials: sp, bracketed: bracketed}
}

// Tokenize implements Tokenizer.
func (t *WordPiece) Tokenize(text string) ([]string, error) {
	var out []string
	for _, word := range t.basicSplit(text) {
		if _, ok := t.bracketed[word]; ok {
			out = append(out, word)
			continue
		}
		pieces, err := t.wordPiece(word)
		if err != nil {
			return nil, err
		}
		out = append(out, pieces...)
	}
	return out, nil
}

// TokensToIDs implements Tokenizer.
func (t *WordPiece) TokensToIDs(tokens []string) ([]int, error) {
	return lookupIDs(t.vocab, t.specials.Unk, tokens)
}

func (t *WordPiece) Token(id int) string {
	if id < 0 || id >= len(t.inv) {
		return ""
	}
	return t.inv[id]
}

func (t *WordPiece) VocabSize() int     { return len(t.inv) }
func (t *WordPiece) Specials() Specials { return t.specials }

// basicSplit cleans text and splits it on whitespace and punctuation, keeping
// bracketed special tokens intact.
func (t *WordPiece) basicSplit(text string) []string {
	var words []string
	for _, field := range strings.Fields(cleanText(text)) {
		if _, ok := t.bracketed[field]; ok {
			words = append(words, field)
			continue
		}
		if t.opts.Lowercase {
			field = strings.ToLower(field)
		}
		if t.opts.StripAccents {
			field = stripAccents(field)
		}
		var cur strings.Builder
		for _, r := range field {
			if isPunctuation(r) {
				if cur.Len() > 0 {
					words = append(words, cur.String())
					cur.Reset()
				}
				words = append(words, string(r))
				continue
			}
			cur.WriteRune(r)
		}
		if cur.Len() > 0 {
			words = append(words, cur.String())
		}
	}
	return words
}

func (t *WordPiece) wordPiece(word string) ([]string, error) {
	unk := t.Token(t.specials.Unk)
	runes := []rune(word)
	if len(runes) > t.opts.MaxInputCharsPerWord {
		if unk == "" {
			return nil, fmt.Errorf("word exceeds %d characters and vocabulary has no [UNK]", t.opts.MaxInputCharsPerWord)
		}
		return []string{unk}, nil
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		match := ""
		for start < end {
			sub := string(runes[start:end])
			if start > 0 {
				sub = t.opts.Prefix + sub
			}
			if _, ok := t.vocab[sub]; ok {
				match = sub
				break
			}
			end--
		}
		if match == "" {
			if unk == "" {
				return nil, fmt.Errorf("no wordpiece covers %q and vocabulary has no [UNK]", word)
			}
			return []string{unk}, nil
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces, nil
}

func cleanText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
