// Package surface turns raw subword tokens into display strings, encoding a
// leading space as a "Ġ" prefix and a line break as a "Ċ" prefix regardless of
// which tokenizer family produced the token.
package surface

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/gltr/internal/tokenizer"
)

const (
	// SpaceMarker prefixes a token that follows whitespace.
	SpaceMarker = "Ġ"
	// BreakMarker prefixes a token that starts a new line.
	BreakMarker = "Ċ"
)

// ErrUnsupportedToken reports a token the rule table cannot render.
var ErrUnsupportedToken = errors.New("unsupported token")

// Family selects the rule table matching a tokenizer family.
type Family string

const (
	// ByteLevel covers GPT-2 style byte-level BPE vocabularies.
	ByteLevel Family = "bytelevel"
	// Continuation covers WordPiece vocabularies that mark word-internal
	// pieces with a continuation prefix.
	Continuation Family = "continuation"
)

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case ByteLevel, Continuation:
		return f, nil
	default:
		return "", fmt.Errorf("unknown tokenizer family %q (expected bytelevel or continuation)", s)
	}
}

// Postprocessor renders raw tokens of one tokenizer family.
type Postprocessor struct {
	family   Family
	prefix   string
	sentence string
}

// Option customizes a Postprocessor.
type Option func(*Postprocessor)

// WithContinuationPrefix overrides the "##" marker of the continuation family.
func WithContinuationPrefix(p string) Option {
	return func(pp *Postprocessor) { pp.prefix = p }
}

// WithSentenceEnd overrides the "[SEP]" token flagged as a line break.
func WithSentenceEnd(tok string) Option {
	return func(pp *Postprocessor) { pp.sentence = tok }
}

func New(family Family, opts ...Option) *Postprocessor {
	pp := &Postprocessor{
		family:   family,
		prefix:   tokenizer.DefaultContinuationPrefix,
		sentence: "[SEP]",
	}
	for _, o := range opts {
		o(pp)
	}
	return pp
}

func (p *Postprocessor) Family() Family { return p.family }

// Postprocess renders token, passing it through unchanged when the rule table
// has no rendering for it.
func (p *Postprocessor) Postprocess(token string) string {
	s, err := p.Surface(token)
	if err != nil {
		return token
	}
	return s
}

// Surface renders token or reports ErrUnsupportedToken.
func (p *Postprocessor) Surface(token string) (string, error) {
	switch p.family {
	case ByteLevel:
		return byteLevelSurface(token)
	case Continuation:
		return p.continuationSurface(token), nil
	default:
		return "", fmt.Errorf("%w: no rules for family %q", ErrUnsupportedToken, p.family)
	}
}

func (p *Postprocessor) continuationSurface(token string) string {
	space := true
	brk := token == p.sentence
	if p.prefix != "" && strings.HasPrefix(token, p.prefix) {
		space = false
		token = token[len(p.prefix):]
	}
	return mark(token, space, brk)
}

// artifacts maps byte-level encodings of multi-byte punctuation to the glyph
// shown in their place.
var artifacts = []struct {
	prefix string
	glyph  string
}{
	{"âĢĶ", "-"}, // em dash
	{"âĢĵ", "-"}, // en dash
	{"âĢľ", "“"},
	{"âĢĿ", "”"},
	{"âĢĻ", "'"},
	{"âĢĺ", "'"},
	// Trailing bytes of curly quotes when the merges split them off "âĢ".
	{"ľ", "“"},
	{"Ŀ", "”"},
	{"Ļ", "'"},
}

// byteLevelSurface never decodes a token: one that matches no rule comes back
// unchanged, so a word split mid-character renders the same piece by piece.
func byteLevelSurface(token string) (string, error) {
	space, brk := false, false
	if rest, ok := strings.CutPrefix(token, SpaceMarker); ok {
		space = true
		token = rest
	}
	for _, a := range artifacts {
		if strings.HasPrefix(token, a.prefix) {
			return mark(a.glyph, space, brk), nil
		}
	}
	switch {
	case strings.HasPrefix(token, BreakMarker):
		token = " "
		brk = true
	case strings.HasPrefix(token, "â"):
		// Other punctuation from the U+2000 block.
		token = " "
		if space {
			token = "-"
		}
	}
	return mark(token, space, brk), nil
}

func mark(token string, space, brk bool) string {
	if space {
		token = SpaceMarker + token
	}
	if brk {
		token = BreakMarker + token
	}
	return token
}
