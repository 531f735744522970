// Package pipeline runs the Batch Pipeline: decode, extract and translate each
// uploaded image in order, producing one Result Record per upload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"imgtranslate/internal/imaging"
	"imgtranslate/internal/language"
	"imgtranslate/internal/logger"
	"imgtranslate/internal/ocr"
	"imgtranslate/internal/session"
	"imgtranslate/internal/translate"
)

// ErrUploadTooLarge rejects payloads over Options.MaxBytes.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// ProgressFunc receives a report after every processed image.
type ProgressFunc func(session.Progress)

// Options tune the pipeline. Zero values select defaults.
type Options struct {
	ThumbnailSize int // bound for both thumbnail dimensions
	MaxBytes      int // per-file size limit, 0 for none
	MaxPixels     int // decoded width×height limit
}

// Pipeline sequences extraction and translation. It holds no per-batch state
// and may be shared between sessions.
type Pipeline struct {
	extractor  *ocr.Extractor
	translator *translate.Translator
	opts       Options
	log        zerolog.Logger
}

// New creates a pipeline.
func New(extractor *ocr.Extractor, translator *translate.Translator, opts Options) *Pipeline {
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = imaging.DefaultThumbnailSize
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = imaging.DefaultMaxPixels
	}
	return &Pipeline{
		extractor:  extractor,
		translator: translator,
		opts:       opts,
		log:        logger.WithComponent("pipeline"),
	}
}

// Run processes uploads sequentially and returns exactly one record per
// upload, in upload order. Failures never abort the batch; they are recorded
// in the affected record.
func (p *Pipeline) Run(ctx context.Context, uploads []session.Upload, lang language.Language, progress ProgressFunc) []*session.Result {
	total := len(uploads)
	results := make([]*session.Result, 0, total)

	p.log.Info().
		Int("images", total).
		Str("language", lang.Name).
		Msg("Batch started")

	for i, upload := range uploads {
		results = append(results, p.process(ctx, upload, lang))
		if progress != nil {
			progress(session.Progress{
				Done:     i + 1,
				Total:    total,
				Filename: upload.Filename,
				Running:  i+1 < total,
			})
		}
	}

	p.log.Info().Int("images", total).Msg("Batch completed")
	return results
}

func (p *Pipeline) process(ctx context.Context, upload session.Upload, lang language.Language) *session.Result {
	res := &session.Result{Filename: upload.Filename, Language: lang}
	log := p.log.With().Str("file", upload.Filename).Logger()

	full, err := p.load(upload)
	if err != nil {
		if errors.Is(err, imaging.ErrInvalidImage) {
			res.Extracted = session.InvalidImageFile
		} else {
			res.Extracted = session.ProcessingError(err)
		}
		res.Diagnostics = append(res.Diagnostics, err.Error())
		log.Warn().Err(err).Msg("Image rejected")
		return res
	}

	res.Image = imaging.Thumbnail(full, p.opts.ThumbnailSize, p.opts.ThumbnailSize)

	extraction := p.extractor.Extract(ctx, full)
	if !extraction.OK() {
		res.Diagnostics = append(res.Diagnostics, extraction.Err.Error())
	}
	if extraction.Empty() {
		res.Extracted = session.NoTextFound
		return res
	}
	res.Extracted = extraction.Text

	translation := p.translator.Translate(ctx, extraction.Text, lang)
	if !translation.OK() {
		res.Diagnostics = append(res.Diagnostics, translation.Err.Error())
	}
	res.Translated = translation.Text
	return res
}

// load validates the upload and decodes it at full resolution. A decoder
// panic is reported as an error for this file only.
func (p *Pipeline) load(upload session.Upload) (img image.Image, err error) {
	if p.opts.MaxBytes > 0 && len(upload.Data) > p.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(upload.Data))
	}

	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decode panic: %v", r)
		}
	}()

	img, _, err = imaging.Decode(upload.Data, p.opts.MaxPixels)
	return img, err
}

// Retranslate builds new records from the extracted text of results under
// lang. Records without translatable text are copied with the new language.
// Audio is not carried over.
func (p *Pipeline) Retranslate(ctx context.Context, results []*session.Result, lang language.Language) []*session.Result {
	out := make([]*session.Result, 0, len(results))
	for _, old := range results {
		res := &session.Result{
			Filename:  old.Filename,
			Image:     old.Image,
			Extracted: old.Extracted,
			Language:  lang,
		}
		if translatable(old) {
			translation := p.translator.Translate(ctx, old.Extracted, lang)
			if !translation.OK() {
				res.Diagnostics = append(res.Diagnostics, translation.Err.Error())
			}
			res.Translated = translation.Text
		} else {
			res.Diagnostics = append([]string(nil), old.Diagnostics...)
		}
		out = append(out, res)
	}

	p.log.Info().
		Int("images", len(out)).
		Str("language", lang.Name).
		Msg("Results retranslated")
	return out
}

// translatable reports whether a record holds recognized text rather than a
// sentinel.
func translatable(r *session.Result) bool {
	return r.Image != nil && r.HasText()
}
