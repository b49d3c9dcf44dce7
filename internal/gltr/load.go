package gltr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samcharles93/gltr/internal/logger"
	"github.com/samcharles93/gltr/internal/model"
	"github.com/samcharles93/gltr/internal/model/remote"
	"github.com/samcharles93/gltr/internal/model/toy"
	"github.com/samcharles93/gltr/internal/surface"
	"github.com/samcharles93/gltr/internal/tokenizer"
)

// Session bundles the collaborators built from a Config. It is safe for
// concurrent use: forward passes are serialized at the model boundary.
type Session struct {
	Config    Config
	Tokenizer tokenizer.Tokenizer
	Model     model.Model
	Checker   Checker
}

// Load resolves cfg into a ready checker.
func Load(cfg Config, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.Discard()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfg.Name, err)
	}
	tok, err := LoadTokenizer(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	m, err := loadModel(cfg, tok, log)
	if err != nil {
		return nil, err
	}

	comp := Components{
		Tokenizer:     tok,
		Normalizer:    newNormalizer(cfg.Normalizer),
		Postprocessor: surface.New(cfg.Tokenizer.Family),
		Model:         m,
		Defaults:      cfg.Options(),
		Logger:        log.With("config", cfg.Name),
	}
	var checker Checker
	switch cfg.Kind {
	case Causal:
		checker, err = NewCausal(comp)
	case Masked:
		checker, err = NewMasked(comp)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("session loaded", "config", cfg.Name, "kind", string(cfg.Kind),
		"backend", string(cfg.Backend), "vocab", tok.VocabSize())
	return &Session{Config: cfg, Tokenizer: tok, Model: m, Checker: checker}, nil
}

func (s *Session) CheckProbabilities(ctx context.Context, text string, opts Options) (*Payload, error) {
	return s.Checker.CheckProbabilities(ctx, text, opts)
}

// Sample generates text from a causal session.
func (s *Session) Sample(ctx context.Context, opts SampleOptions) (string, error) {
	if s.Config.Kind != Causal {
		return "", fmt.Errorf("sampling needs a causal model, %s is %s", s.Config.Name, s.Config.Kind)
	}
	return Sample(ctx, s.Tokenizer, s.Model, opts)
}

// LoadTokenizer opens the vocabulary files described by tc.
func LoadTokenizer(tc TokenizerConfig) (tokenizer.Tokenizer, error) {
	file := tc.File
	if file == "" && tc.Vocab == "" {
		file = existing(tc.Dir, "tokenizer.json")
	}
	switch tc.Family {
	case surface.ByteLevel:
		if file != "" {
			return tokenizer.LoadByteLevelJSON(file)
		}
		vocab := firstNonEmpty(tc.Vocab, inDir(tc.Dir, "vocab.json"))
		merges := firstNonEmpty(tc.Merges, inDir(tc.Dir, "merges.txt"))
		if vocab == "" || merges == "" {
			return nil, errors.New("byte-level tokenizer needs tokenizer.json or vocab.json with merges.txt")
		}
		return tokenizer.LoadGPT2Files(vocab, merges)
	case surface.Continuation:
		if file != "" {
			return tokenizer.LoadWordPieceJSON(file)
		}
		vocab := firstNonEmpty(tc.Vocab, inDir(tc.Dir, "vocab.txt"))
		if vocab == "" {
			return nil, errors.New("continuation tokenizer needs tokenizer.json or vocab.txt")
		}
		return tokenizer.LoadVocabTxt(vocab, tokenizer.WordPieceOptions{
			Lowercase:    tc.Lowercase,
			StripAccents: tc.Lowercase,
		})
	default:
		return nil, fmt.Errorf("unknown tokenizer family %q", tc.Family)
	}
}

func loadModel(cfg Config, tok tokenizer.Tokenizer, log logger.Logger) (model.Model, error) {
	switch cfg.Backend {
	case BackendRemote:
		c, err := remote.New(remote.Options{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			Device:   cfg.Device,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return model.Serialize(c), nil
	case BackendToy:
		w, err := toy.Load(cfg.Weights)
		if err != nil {
			return nil, err
		}
		if string(w.Kind) != string(cfg.Kind) {
			return nil, fmt.Errorf("toy weights %s are %s, config wants %s", cfg.Weights, w.Kind, cfg.Kind)
		}
		if w.Vocab() < tok.VocabSize() {
			return nil, fmt.Errorf("toy weights %s cover %d tokens, tokenizer has %d", cfg.Weights, w.Vocab(), tok.VocabSize())
		}
		var ignore []int
		if cfg.Kind == Masked {
			sp := tok.Specials()
			ignore = []int{sp.Pad, sp.Mask}
		}
		return model.Serialize(toy.New(w, ignore...)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newNormalizer(nc NormalizerConfig) tokenizer.Normalizer {
	if !nc.Arabic {
		return tokenizer.Identity
	}
	return tokenizer.NewArabic(tokenizer.ArabicOptions{
		KeepEmojis:          nc.KeepEmojis,
		SeparatePunctuation: nc.SeparatePunctuation,
	})
}

func inDir(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// existing returns dir/name when that file exists.
func existing(dir, name string) string {
	p := inDir(dir, name)
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
