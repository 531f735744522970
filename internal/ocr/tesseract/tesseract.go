// Package tesseract implements ocr.Engine on top of the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"imgtranslate/internal/imaging"
	"imgtranslate/internal/ocr"
)

// Engine recognizes text with a local Tesseract installation. A fresh client
// is created per call, gosseract clients are not safe for concurrent use.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on img. languages default to English.
func (e *Engine) Recognize(ctx context.Context, img image.Image, languages ...string) (string, error) {
	const op = "tesseract.Recognize"

	if img == nil {
		return "", ocr.NewOCRError(op, ocr.ErrNilImage, "")
	}
	if err := ctx.Err(); err != nil {
		return "", ocr.WrapOCRError(op, err, "context done before recognition")
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", ocr.WrapOCRError(op, err, "failed to encode image")
	}

	c := e.clientFactory()
	defer c.Close()

	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if err := c.SetLanguage(languages...); err != nil {
		return "", ocr.WrapOCRError(op, err, "set languages")
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", ocr.WrapOCRError(op, err, "set image")
	}

	text, err := c.Text()
	if err != nil {
		return "", ocr.WrapOCRError(op, fmt.Errorf("%w: %v", ocr.ErrOCRFailed, err), "recognize text")
	}
	return text, nil
}

// Close is a no-op; clients are released after every call.
func (e *Engine) Close() error { return nil }
