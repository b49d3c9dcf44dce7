package tokenizer

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestByteLevel(t *testing.T) *ByteLevel {
	t.Helper()
	tokens := []string{"<|endoftext|>", "a", "b", "Ġ", "ab", "Ġab", "Ċ"}
	tok, err := NewByteLevel(tokens, []string{"#version: 0.2", "a b", "Ġ ab"}, "")
	if err != nil {
		t.Fatalf("NewByteLevel: %v", err)
	}
	return tok
}

func TestByteLevelTokenize(t *testing.T) {
	t.Parallel()

	tok := newTestByteLevel(t)
	toks, ids, err := Encode(tok, "ab ab<|endoftext|>\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wantToks := []string{"ab", "Ġab", "<|endoftext|>", "Ċ"}
	if !slices.Equal(toks, wantToks) {
		t.Fatalf("tokens %q, want %q", toks, wantToks)
	}
	if !slices.Equal(ids, []int{4, 5, 0, 6}) {
		t.Fatalf("ids %v", ids)
	}
	// Second call hits the merge cache and must agree.
	again, err := tok.Tokenize("ab ab")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if !slices.Equal(again, wantToks[:2]) {
		t.Fatalf("cached tokens %q", again)
	}
	if sp := tok.Specials(); sp.BOS != 0 || sp.EOS != 0 || sp.Mask != -1 {
		t.Fatalf("unexpected specials %+v", sp)
	}
	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "ab ab<|endoftext|>\n" {
		t.Fatalf("decode round trip: %q", text)
	}
}

func TestByteLevelUnknownToken(t *testing.T) {
	t.Parallel()

	tok := newTestByteLevel(t)
	if _, _, err := Encode(tok, "zz"); err == nil {
		t.Fatal("expected unknown token error without an unk id")
	}
}

func TestByteDecodeArabic(t *testing.T) {
	t.Parallel()

	const word = " سلام"
	enc := byteEncode(word)
	if enc[:2] != "Ġ" {
		t.Fatalf("space should map to Ġ, got %q", enc)
	}
	if got := string(ByteDecode(enc)); got != word {
		t.Fatalf("round trip %q, want %q", got, word)
	}
	if string(byteEncode("\n")) != "Ċ" {
		t.Fatalf("newline should map to Ċ")
	}
}

func TestParseByteLevelJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"model": {"type": "BPE", "vocab": {"a": 0, "b": 1, "ab": 2}, "merges": [["a", "b"]]},
		"added_tokens": [{"id": 3, "content": "<|endoftext|>", "special": true}]
	}`)
	tok, err := ParseByteLevelJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tok.VocabSize() != 4 {
		t.Fatalf("vocab size %d", tok.VocabSize())
	}
	toks, err := tok.Tokenize("ab<|endoftext|>")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if !slices.Equal(toks, []string{"ab", "<|endoftext|>"}) {
		t.Fatalf("tokens %q", toks)
	}

	if _, err := ParseByteLevelJSON([]byte(`{"model":{"type":"WordPiece","vocab":{}}}`)); err == nil {
		t.Fatal("expected unsupported model error")
	}
}

func TestLoadGPT2Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	vocab := filepath.Join(dir, "vocab.json")
	merges := filepath.Join(dir, "merges.txt")
	if err := os.WriteFile(vocab, []byte(`{"a":0,"b":1,"ab":2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(merges, []byte("#version: 0.2\na b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadGPT2Files(vocab, merges)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := tok.Token(2); got != "ab" {
		t.Fatalf("Token(2) = %q", got)
	}
	if got := tok.Token(9); got != "" {
		t.Fatalf("out of range token should be empty, got %q", got)
	}
}

func newTestWordPiece(t *testing.T) *WordPiece {
	t.Helper()
	tok, err := NewWordPiece([]string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"كتب", "##ت", "ال", "##كتاب", ".", "،",
	}, WordPieceOptions{})
	if err != nil {
		t.Fatalf("NewWordPiece: %v", err)
	}
	return tok
}

func TestWordPieceTokenize(t *testing.T) {
	t.Parallel()

	tok := newTestWordPiece(t)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "subwords", in: "كتبت الكتاب.", want: []string{"كتب", "##ت", "ال", "##كتاب", "."}},
		{name: "brackets kept", in: "[CLS] كتب [SEP]", want: []string{"[CLS]", "كتب", "[SEP]"}},
		{name: "unknown word", in: "قلم،", want: []string{"[UNK]", "،"}},
		{name: "empty", in: "   ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tok.Tokenize(tt.in)
			if err != nil {
				t.Fatalf("tokenize: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}

	sp := tok.Specials()
	if sp.CLS != 2 || sp.SEP != 3 || sp.Mask != 4 || sp.Pad != 0 || sp.Unk != 1 {
		t.Fatalf("unexpected specials %+v", sp)
	}
}

func TestParseWordPieceJSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"normalizer": {"type": "BertNormalizer", "lowercase": true},
		"model": {"type": "WordPiece", "unk_token": "[UNK]", "continuing_subword_prefix": "##",
			"vocab": {"[UNK]": 0, "[CLS]": 1, "[SEP]": 2, "cafe": 3, "##s": 4}}
	}`)
	tok, err := ParseWordPieceJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := tok.Tokenize("Cafés")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if !slices.Equal(got, []string{"cafe", "##s"}) {
		t.Fatalf("tokens %q", got)
	}
}

func TestLoadVocabTxt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte("[PAD]\n[UNK]\r\nكتب\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadVocabTxt(path, WordPieceOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids, err := tok.TokensToIDs([]string{"كتب", "missing"})
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if !slices.Equal(ids, []int{2, 1}) {
		t.Fatalf("ids %v", ids)
	}
}

func TestArabicNormalizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts ArabicOptions
		in   string
		want string
	}{
		{
			name: "diacritics tatweel and url",
			in:   "مَرْحَبًا ــ بكم https://example.com/x",
			want: "مرحبا بكم " + URLPlaceholder,
		},
		{
			name: "punctuation spacing",
			opts: ArabicOptions{SeparatePunctuation: true},
			in:   "مرحبا، كيف؟ @user",
			want: "مرحبا ، كيف ؟ " + MentionPlaceholder,
		},
		{
			name: "arabic mention",
			in:   "شكرا @محمد_99 على الرد",
			want: "شكرا " + MentionPlaceholder + " على الرد",
		},
		{
			name: "line breaks survive",
			in:   "سطر  أول\n  سطر ثان 😀",
			want: "سطر أول\nسطر ثان",
		},
		{
			name: "emojis kept on request",
			opts: ArabicOptions{KeepEmojis: true},
			in:   "أهلا 😀",
			want: "أهلا 😀",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewArabic(tt.opts).Normalize(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
	if Identity.Normalize(" x ") != " x " {
		t.Fatal("identity normalizer changed its input")
	}
}
