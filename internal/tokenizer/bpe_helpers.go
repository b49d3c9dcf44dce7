package tokenizer

import (
	"slices"
	"strings"
)

// Pair represents a pair of BPE tokens.
type Pair struct {
	A string
	B string
}

type textPart struct {
	text      string
	isSpecial bool
}

// byteEncoder/byteDecoder hold the reversible GPT-2 byte <-> rune table.
var byteEncoder, byteDecoder = bytesToUnicode()

// ByteDecode reverses the byte-level mapping of a raw token. Runes outside the
// table are copied through as UTF-8.
func ByteDecode(token string) []byte {
	b := make([]byte, 0, len(token))
	for _, r := range token {
		if by, ok := byteDecoder[r]; ok {
			b = append(b, by)
		} else {
			b = append(b, string(r)...)
		}
	}
	return b
}

func byteEncode(s string) string {
	var b strings.Builder
	for _, by := range []byte(s) {
		b.WriteRune(byteEncoder[by])
	}
	return b.String()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func getPairs(word []string) map[Pair]struct{} {
	pairs := make(map[Pair]struct{})
	if len(word) < 2 {
		return pairs
	}
	prev := word[0]
	for _, w := range word[1:] {
		pairs[Pair{A: prev, B: w}] = struct{}{}
		prev = w
	}
	return pairs
}

func mergePair(word []string, pair Pair) []string {
	var out []string
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i] == pair.A && word[i+1] == pair.B {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}

// collectSpecials returns the <|...|> tokens of a vocabulary, longest first.
func collectSpecials(tokens []string) []string {
	out := make([]string, 0, 32)
	for _, t := range tokens {
		if isSpecialToken(t) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b string) int { return len(b) - len(a) })
	return out
}

func isSpecialToken(s string) bool {
	if len(s) < 4 {
		return false
	}
	return strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>")
}

func splitSpecials(text string, specials []string) []textPart {
	if len(specials) == 0 || !strings.Contains(text, "<|") {
		return []textPart{{text: text, isSpecial: false}}
	}
	var parts []textPart
	var buf strings.Builder
	for i := 0; i < len(text); {
		match := ""
		for _, sp := range specials {
			if strings.HasPrefix(text[i:], sp) {
				match = sp
				break
			}
		}
		if match != "" {
			if buf.Len() > 0 {
				parts = append(parts, textPart{text: buf.String(), isSpecial: false})
				buf.Reset()
			}
			parts = append(parts, textPart{text: match, isSpecial: true})
			i += len(match)
			continue
		}
		buf.WriteByte(text[i])
		i++
	}
	if buf.Len() > 0 {
		parts = append(parts, textPart{text: buf.String(), isSpecial: false})
	}
	return parts
}

// bytesToUnicode maps bytes to unicode runes to make BPE reversible.
// Printable latin-1 bytes map to themselves; the rest are shifted above 255.
func bytesToUnicode() ([256]rune, map[rune]byte) {
	var enc [256]rune
	dec := make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !((b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)) {
			r = rune(256 + n)
			n++
		}
		enc[b] = r
		dec[r] = byte(b)
	}
	return enc, dec
}
