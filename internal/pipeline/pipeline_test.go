package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"imgtranslate/internal/language"
	"imgtranslate/internal/ocr"
	"imgtranslate/internal/session"
	"imgtranslate/internal/translate"
)

// fakeEngine returns text keyed by the image width, so each test image can
// carry its own "content".
type fakeEngine struct {
	byWidth map[int]string
	err     error
	seen    []image.Rectangle
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, img image.Image, _ ...string) (string, error) {
	f.seen = append(f.seen, img.Bounds())
	if f.err != nil {
		return "", f.err
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

func (f *fakeEngine) Close() error { return nil }

type recordingBackend struct {
	requests []translate.Request
	err      error
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Translate(_ context.Context, req translate.Request) (string, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return "", b.err
	}
	return "[" + req.TargetCode + "] " + req.Text, nil
}

func (b *recordingBackend) Ready(context.Context) error { return nil }

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func lang(t *testing.T, name string) language.Language {
	t.Helper()
	l, ok := language.Lookup(name)
	require.True(t, ok)
	return l
}

func newPipeline(engine ocr.Engine, backend translate.Backend, opts Options) *Pipeline {
	return New(ocr.NewExtractor(engine), translate.NewTranslator(backend, ""), opts)
}

func TestRunProducesOneRecordPerUploadInOrder(t *testing.T) {
	engine := &fakeEngine{byWidth: map[int]string{10: "first", 11: "second", 12: "third"}}
	backend := &recordingBackend{}
	p := newPipeline(engine, backend, Options{})

	uploads := []session.Upload{
		{Filename: "a.png", Data: pngOf(t, 10, 4)},
		{Filename: "b.png", Data: pngOf(t, 11, 4)},
		{Filename: "c.png", Data: pngOf(t, 12, 4)},
	}
	results := p.Run(context.Background(), uploads, lang(t, "Kannada"), nil)

	require.Len(t, results, 3)
	for i, want := range []string{"first", "second", "third"} {
		require.Equal(t, uploads[i].Filename, results[i].Filename)
		require.Equal(t, want, results[i].Extracted)
		require.Equal(t, "[kan_Knda] "+want, results[i].Translated)
		require.Equal(t, "Kannada", results[i].Language.Name)
		require.NotNil(t, results[i].Image)
	}
}

func TestRunHelloWorldHindi(t *testing.T) {
	backend := &recordingBackend{}
	p := newPipeline(&fakeEngine{byWidth: map[int]string{20: "  Hello World\n"}}, backend, Options{})

	results := p.Run(context.Background(),
		[]session.Upload{{Filename: "hello.png", Data: pngOf(t, 20, 8)}},
		lang(t, "Hindi"), nil)

	require.Len(t, results, 1)
	require.Equal(t, "Hello World", results[0].Extracted)
	require.Len(t, backend.requests, 1)
	require.Equal(t, translate.Request{Text: "Hello World", SourceCode: "eng_Latn", TargetCode: "hin_Deva"}, backend.requests[0])
	require.NotEmpty(t, results[0].Translated)
}

func TestRunBlankImageSkipsTranslator(t *testing.T) {
	backend := &recordingBackend{}
	p := newPipeline(&fakeEngine{byWidth: map[int]string{}}, backend, Options{})

	results := p.Run(context.Background(),
		[]session.Upload{{Filename: "blank.png", Data: pngOf(t, 30, 30)}},
		language.Default(), nil)

	require.Equal(t, session.NoTextFound, results[0].Extracted)
	require.Empty(t, results[0].Translated)
	require.Empty(t, backend.requests)
}

func TestRunOCRFailureIsRecorded(t *testing.T) {
	backend := &recordingBackend{}
	p := newPipeline(&fakeEngine{err: errors.New("tesseract missing")}, backend, Options{})

	results := p.Run(context.Background(),
		[]session.Upload{{Filename: "x.png", Data: pngOf(t, 5, 5)}},
		language.Default(), nil)

	require.Equal(t, session.NoTextFound, results[0].Extracted)
	require.Empty(t, results[0].Translated)
	require.Empty(t, backend.requests)
	require.NotEmpty(t, results[0].Diagnostics)
	require.Contains(t, results[0].Diagnostics[0], "tesseract missing")
}

func TestRunTranslationFailureKeepsExtraction(t *testing.T) {
	backend := &recordingBackend{err: errors.New("model crashed")}
	p := newPipeline(&fakeEngine{byWidth: map[int]string{7: "Stop"}}, backend, Options{})

	results := p.Run(context.Background(),
		[]session.Upload{{Filename: "sign.jpg", Data: pngOf(t, 7, 7)}},
		lang(t, "Tamil"), nil)

	require.Equal(t, "Stop", results[0].Extracted)
	require.Empty(t, results[0].Translated)
	require.Len(t, results[0].Diagnostics, 1)
}

func TestRunRejectedUploads(t *testing.T) {
	backend := &recordingBackend{}
	engine := &fakeEngine{byWidth: map[int]string{9: "ok"}}
	p := newPipeline(engine, backend, Options{MaxBytes: 4096})

	uploads := []session.Upload{
		{Filename: "broken.png", Data: []byte("definitely not an image")},
		{Filename: "empty.png"},
		{Filename: "huge.png", Data: bytes.Repeat([]byte{0}, 5000)},
		{Filename: "fine.png", Data: pngOf(t, 9, 9)},
	}
	results := p.Run(context.Background(), uploads, language.Default(), nil)

	require.Len(t, results, 4)

	require.Equal(t, session.InvalidImageFile, results[0].Extracted)
	require.Nil(t, results[0].Image)
	require.Empty(t, results[0].Translated)

	require.Equal(t, session.InvalidImageFile, results[1].Extracted)
	require.Nil(t, results[1].Image)
	require.Empty(t, results[1].Translated)

	require.True(t, strings.HasPrefix(results[2].Extracted, "Error processing file: "), results[2].Extracted)
	require.Contains(t, results[2].Extracted, ErrUploadTooLarge.Error())

	require.Equal(t, "ok", results[3].Extracted)
	require.Len(t, engine.seen, 1, "rejected uploads never reach OCR")
	require.Len(t, backend.requests, 1)
}

func TestRunRejectsOversizedDimensions(t *testing.T) {
	// A few kilobytes on the wire, 25M pixels once decoded.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5000, 5000))))
	require.Less(t, buf.Len(), 1<<20)

	backend := &recordingBackend{}
	engine := &fakeEngine{byWidth: map[int]string{5000: "too big", 9: "ok"}}
	p := newPipeline(engine, backend, Options{MaxBytes: 20 << 20, MaxPixels: 10_000_000})

	results := p.Run(context.Background(), []session.Upload{
		{Filename: "bomb.png", Data: buf.Bytes()},
		{Filename: "fine.png", Data: pngOf(t, 9, 9)},
	}, language.Default(), nil)

	require.Len(t, results, 2)
	require.True(t, strings.HasPrefix(results[0].Extracted, "Error processing file: "), results[0].Extracted)
	require.Contains(t, results[0].Extracted, "5000x5000")
	require.Nil(t, results[0].Image)
	require.Empty(t, results[0].Translated)
	require.NotEmpty(t, results[0].Diagnostics)

	require.Equal(t, "ok", results[1].Extracted)
	require.Equal(t, []image.Rectangle{image.Rect(0, 0, 9, 9)}, engine.seen)
	require.Len(t, backend.requests, 1)
}

func TestRunReportsProgress(t *testing.T) {
	p := newPipeline(&fakeEngine{byWidth: map[int]string{}}, &recordingBackend{}, Options{})

	uploads := []session.Upload{
		{Filename: "1.png", Data: pngOf(t, 3, 3)},
		{Filename: "2.png", Data: pngOf(t, 3, 3)},
		{Filename: "3.png", Data: pngOf(t, 3, 3)},
		{Filename: "4.png", Data: pngOf(t, 3, 3)},
	}

	var fractions []float64
	var last session.Progress
	p.Run(context.Background(), uploads, language.Default(), func(pr session.Progress) {
		fractions = append(fractions, pr.Fraction())
		last = pr
	})

	require.Equal(t, []float64{0.25, 0.5, 0.75, 1}, fractions)
	require.Equal(t, "4.png", last.Filename)
	require.False(t, last.Running)
}

func TestRunEmptyBatch(t *testing.T) {
	p := newPipeline(&fakeEngine{}, &recordingBackend{}, Options{})
	require.Empty(t, p.Run(context.Background(), nil, language.Default(), nil))
}

func TestThumbnailForDisplayFullResolutionForOCR(t *testing.T) {
	engine := &fakeEngine{byWidth: map[int]string{1200: "wide"}}
	p := newPipeline(engine, &recordingBackend{}, Options{ThumbnailSize: 600})

	results := p.Run(context.Background(),
		[]session.Upload{{Filename: "wide.png", Data: pngOf(t, 1200, 300)}},
		language.Default(), nil)

	require.Equal(t, "wide", results[0].Extracted)
	require.Equal(t, image.Rect(0, 0, 1200, 300), engine.seen[0])

	b := results[0].Image.Bounds()
	require.LessOrEqual(t, b.Dx(), 600)
	require.LessOrEqual(t, b.Dy(), 600)
	require.Equal(t, 600, b.Dx())
	require.InDelta(t, 150, b.Dy(), 1)
}

func TestRetranslateUsesStoredText(t *testing.T) {
	engine := &fakeEngine{byWidth: map[int]string{8: "Exit"}}
	backend := &recordingBackend{}
	p := newPipeline(engine, backend, Options{})

	results := p.Run(context.Background(), []session.Upload{
		{Filename: "exit.png", Data: pngOf(t, 8, 8)},
		{Filename: "bad.png", Data: []byte("nope")},
		{Filename: "blank.png", Data: pngOf(t, 6, 6)},
	}, lang(t, "Hindi"), nil)
	results[0].AttachAudio([]byte("old"))

	again := p.Retranslate(context.Background(), results, lang(t, "Bengali"))

	require.Len(t, again, 3)
	require.Len(t, engine.seen, 2, "retranslation does not rerun OCR")

	require.Equal(t, "Exit", again[0].Extracted)
	require.Equal(t, "[ben_Beng] Exit", again[0].Translated)
	require.Equal(t, "Bengali", again[0].Language.Name)
	_, hasAudio := again[0].Audio()
	require.False(t, hasAudio)

	require.Equal(t, session.InvalidImageFile, again[1].Extracted)
	require.Empty(t, again[1].Translated)
	require.Equal(t, session.NoTextFound, again[2].Extracted)
	require.Empty(t, again[2].Translated)

	// Original records are left untouched.
	require.Equal(t, "Hindi", results[0].Language.Name)
	require.Len(t, backend.requests, 2)
}
