// Package ocr extracts English text from decoded raster images.
//
// Recognition is delegated to an Engine. Two engines are available:
//   - tesseract (package ocr/tesseract): local Tesseract via gosseract, the default
//   - vision: Google Cloud Vision TEXT_DETECTION
//
// Required Environment Variables for the vision engine:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Engines report failures as errors. The Extractor sitting in front of them
// turns every failure into an empty Extraction carrying the error, so a bad
// image never aborts a batch.
package ocr

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"imgtranslate/internal/logger"
)

// Engine recognizes text in an image.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Recognize returns the raw text found in img. languages are engine
	// language hints (Tesseract pack names such as "eng").
	Recognize(ctx context.Context, img image.Image, languages ...string) (string, error)

	// Close releases engine resources.
	Close() error
}

// Extraction is the outcome of one extraction. Text is empty whenever Err is set.
type Extraction struct {
	// Text is the recognized text with leading and trailing whitespace removed.
	Text string `json:"text"`

	// Err is the engine failure, if any. It is a diagnostic, not a fatal error.
	Err error `json:"-"`

	// Duration is how long recognition took.
	Duration time.Duration `json:"duration"`
}

// OK reports whether extraction succeeded, regardless of whether text was found.
func (e Extraction) OK() bool {
	return e.Err == nil
}

// Empty reports whether no text is available.
func (e Extraction) Empty() bool {
	return e.Text == ""
}

// Extractor is the Text Extractor: it runs an Engine and never propagates failures.
type Extractor struct {
	engine    Engine
	languages []string
	log       zerolog.Logger
}

// NewExtractor wraps engine. languages default to English ("eng").
func NewExtractor(engine Engine, languages ...string) *Extractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Extractor{
		engine:    engine,
		languages: append([]string(nil), languages...),
		log:       logger.WithComponent("ocr"),
	}
}

// Engine returns the wrapped engine.
func (x *Extractor) Engine() Engine {
	return x.engine
}

// Extract recognizes text in img.
func (x *Extractor) Extract(ctx context.Context, img image.Image) Extraction {
	const op = "Extract"
	start := time.Now()

	if img == nil {
		err := NewOCRError(op, ErrNilImage, "")
		x.log.Warn().Err(err).Msg("Text extraction skipped")
		return Extraction{Err: err}
	}

	text, err := x.engine.Recognize(ctx, img, x.languages...)
	duration := time.Since(start)
	if err != nil {
		err = WrapOCRError(op, err, x.engine.Name())
		x.log.Error().
			Err(err).
			Str("engine", x.engine.Name()).
			Dur("duration", duration).
			Msg("Text extraction error")
		return Extraction{Err: err, Duration: duration}
	}

	text = strings.TrimSpace(text)
	x.log.Debug().
		Str("engine", x.engine.Name()).
		Int("text_length", len(text)).
		Dur("duration", duration).
		Msg("Text extraction completed")

	return Extraction{Text: text, Duration: duration}
}

// Close closes the wrapped engine.
func (x *Extractor) Close() error {
	return x.engine.Close()
}
