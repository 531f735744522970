// Package translate turns extracted English text into one of the supported
// Indian languages using a pretrained multilingual model.
//
// The model itself runs behind a Backend:
//   - nllb: an NLLB-200 inference server reached over HTTP. The server applies
//     the tokenizer defaults (padding and truncation, no max-length override),
//     forces the first decoder token to the target identifier and decodes the
//     first generated sequence without special tokens.
//   - openai: an OpenAI-compatible chat model asked for a plain translation.
//
// A Backend is created once at process start, checked with Ready, and shared
// read-only by every request afterwards.
package translate

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"imgtranslate/internal/language"
	"imgtranslate/internal/logger"
)

// Request is a single translation call.
type Request struct {
	Text       string `json:"text"`
	SourceCode string `json:"src_lang"`
	TargetCode string `json:"tgt_lang"`
}

// Backend runs the translation model.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Translate returns the decoded first sequence for req.
	Translate(ctx context.Context, req Request) (string, error)

	// Ready verifies the model is loaded and reachable.
	Ready(ctx context.Context) error
}

// Translation is the outcome of one translation. Text is empty whenever Err is set.
type Translation struct {
	Text     string        `json:"text"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the translation succeeded.
func (t Translation) OK() bool {
	return t.Err == nil
}

// Translator is the Translator component. It validates input, calls the
// backend and never propagates failures past its boundary.
type Translator struct {
	backend    Backend
	sourceCode string
	log        zerolog.Logger
}

// NewTranslator wraps backend. An empty sourceCode means language.SourceCode.
func NewTranslator(backend Backend, sourceCode string) *Translator {
	if sourceCode == "" {
		sourceCode = language.SourceCode
	}
	return &Translator{
		backend:    backend,
		sourceCode: sourceCode,
		log:        logger.WithComponent("translate"),
	}
}

// Backend returns the wrapped backend.
func (t *Translator) Backend() Backend {
	return t.backend
}

// Ready checks the backend's model. A failure here is fatal at startup.
func (t *Translator) Ready(ctx context.Context) error {
	if err := t.backend.Ready(ctx); err != nil {
		return WrapTranslationError("Ready", t.backend.Name(), err, "model check failed")
	}
	return nil
}

// Translate translates text into lang.
func (t *Translator) Translate(ctx context.Context, text string, lang language.Language) Translation {
	const op = "Translate"
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return Translation{Err: WrapTranslationError(op, t.backend.Name(), ErrEmptyText, "")}
	}
	if _, ok := language.ByTargetCode(lang.TargetCode); !ok {
		err := WrapTranslationError(op, t.backend.Name(), ErrUnsupportedLanguage, lang.TargetCode)
		t.log.Error().Err(err).Msg("Translation error")
		return Translation{Err: err}
	}

	out, err := t.backend.Translate(ctx, Request{
		Text:       text,
		SourceCode: t.sourceCode,
		TargetCode: lang.TargetCode,
	})
	duration := time.Since(start)
	if err != nil {
		err = WrapTranslationError(op, t.backend.Name(), err, lang.TargetCode)
		t.log.Error().
			Err(err).
			Str("target", lang.TargetCode).
			Dur("duration", duration).
			Msg("Translation error")
		return Translation{Err: err, Duration: duration}
	}

	out = StripSpecialTokens(out, lang.TargetCode)
	t.log.Debug().
		Str("target", lang.TargetCode).
		Int("source_length", len(text)).
		Int("translated_length", len(out)).
		Dur("duration", duration).
		Msg("Translation completed")

	return Translation{Text: out, Duration: duration}
}

var specialTokens = regexp.MustCompile(`</?s>|<pad>|<unk>|<mask>`)

// StripSpecialTokens removes model-internal tokens that leaked into decoded
// output, including a leading forced language identifier.
func StripSpecialTokens(text, targetCode string) string {
	text = specialTokens.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if targetCode != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, targetCode))
	}
	return text
}
