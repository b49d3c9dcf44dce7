package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer cleans raw text before it is tokenized.
type Normalizer interface {
	Normalize(text string) string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(string) string

func (f NormalizerFunc) Normalize(text string) string { return f(text) }

// Identity leaves text untouched.
var Identity Normalizer = NormalizerFunc(func(s string) string { return s })

// Placeholder words substituted for entities the Arabic models were trained without.
const (
	URLPlaceholder     = "[رابط]"
	EmailPlaceholder   = "[بريد]"
	MentionPlaceholder = "[مستخدم]"
)

var (
	urlRe     = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	emailRe   = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	mentionRe = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// ArabicOptions toggles the optional normalization steps.
type ArabicOptions struct {
	KeepEmojis bool
	// SeparatePunctuation surrounds non-word characters with spaces, which is
	// how the v2 Arabic BERT vocabularies were built.
	SeparatePunctuation bool
}

// Arabic normalizes text for the Arabic GPT-2 and BERT models: NFKC, removal
// of diacritics and tatweel, entity placeholders and whitespace collapse.
type Arabic struct {
	opts ArabicOptions
}

func NewArabic(opts ArabicOptions) *Arabic {
	return &Arabic{opts: opts}
}

func (a *Arabic) Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = urlRe.ReplaceAllString(s, " "+URLPlaceholder+" ")
	s = emailRe.ReplaceAllString(s, " "+EmailPlaceholder+" ")
	s = mentionRe.ReplaceAllString(s, " "+MentionPlaceholder+" ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isTashkeel(r), r == tatweel:
			continue
		case !a.opts.KeepEmojis && isEmoji(r):
			continue
		case a.opts.SeparatePunctuation && isSeparable(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if a.opts.SeparatePunctuation {
		out = rejoinPlaceholders(out)
	}
	// Line breaks survive so the byte-level family can mark them.
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

const tatweel = 'ـ'

func isTashkeel(r rune) bool {
	return (r >= 'ً' && r <= 'ْ') || r == 'ٰ'
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) || r == 0xFE0F
}

func isSeparable(r rune) bool {
	if r == '\n' || unicode.IsSpace(r) {
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// rejoinPlaceholders undoes punctuation spacing inside the bracketed placeholders.
func rejoinPlaceholders(s string) string {
	for _, p := range []string{URLPlaceholder, EmailPlaceholder, MentionPlaceholder} {
		spaced := " [ " + strings.Trim(p, "[]") + " ] "
		s = strings.ReplaceAll(s, spaced, " "+p+" ")
	}
	return s
}
