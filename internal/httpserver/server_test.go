package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"imgtranslate/internal/ocr"
	"imgtranslate/internal/pipeline"
	"imgtranslate/internal/session"
	"imgtranslate/internal/speech"
	"imgtranslate/internal/translate"
)

// widthEngine "reads" text keyed by image width.
type widthEngine map[int]string

func (widthEngine) Name() string { return "width" }

func (w widthEngine) Recognize(_ context.Context, img image.Image, _ ...string) (string, error) {
	return w[img.Bounds().Dx()], nil
}

func (widthEngine) Close() error { return nil }

type echoBackend struct {
	calls    int
	err      error
	readyErr error
}

func (b *echoBackend) Name() string { return "echo" }

func (b *echoBackend) Translate(_ context.Context, req translate.Request) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return req.Text + "|" + req.TargetCode, nil
}

func (b *echoBackend) Ready(context.Context) error { return b.readyErr }

type countingVoice struct {
	calls int
	err   error
}

func (v *countingVoice) Name() string { return "voice" }

func (v *countingVoice) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return []byte("ID3:" + lang + ":" + text), nil
}

type harness struct {
	t       *testing.T
	srv     *Server
	backend *echoBackend
	voice   *countingVoice
	cookies []*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := &echoBackend{}
	voice := &countingVoice{}
	engine := widthEngine{10: "Hello World", 12: "Exit"}

	p := pipeline.New(ocr.NewExtractor(engine), translate.NewTranslator(backend, ""), pipeline.Options{})
	srv, err := New(Deps{
		Pipeline:    p,
		Translator:  translate.NewTranslator(backend, ""),
		Synthesizer: speech.NewSynthesizer(voice),
		Sessions:    session.NewStore(0),
	}, Options{BodyLimit: 8 * 1024 * 1024})
	require.NoError(t, err)

	return &harness{t: t, srv: srv, backend: backend, voice: voice}
}

func (h *harness) do(req *http.Request) *http.Response {
	h.t.Helper()
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	resp, err := h.srv.app.Test(req, -1)
	require.NoError(h.t, err)
	if cookies := resp.Cookies(); len(cookies) > 0 {
		h.cookies = cookies
	}
	return resp
}

func (h *harness) get(path string) *http.Response {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) postForm(path string, values url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

type file struct {
	name string
	data []byte
}

func (h *harness) upload(files ...file) *http.Response {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.name)
		require.NoError(h.t, err)
		_, err = part.Write(f.data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req)
}

func (h *harness) session() *session.Session {
	h.t.Helper()
	require.NotEmpty(h.t, h.cookies)
	sess, created := h.srv.deps.Sessions.Get(h.cookies[0].Value)
	require.False(h.t, created)
	return sess
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

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

func TestIndexIssuesSessionCookie(t *testing.T) {
	h := newHarness(t)

	resp := h.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.NotEmpty(t, h.cookies)
	require.Equal(t, sessionCookie, h.cookies[0].Name)

	html := body(t, resp)
	require.Contains(t, html, `<option value="Telugu" selected>`)
	require.Contains(t, html, `<option value="Marathi">`)
	require.Equal(t, session.Empty, h.session().State())
}

func TestUploadRendersResultsInOrder(t *testing.T) {
	h := newHarness(t)
	h.get("/")
	h.postForm("/language", url.Values{"language": {"Hindi"}})

	resp := h.upload(
		file{"hello.png", pngOf(t, 10, 4)},
		file{"blank.jpg", pngOf(t, 30, 30)},
		file{"broken.jpeg", []byte("garbage")},
	)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	results := h.session().Results()
	require.Len(t, results, 3)
	require.Equal(t, "Hello World", results[0].Extracted)
	require.Equal(t, "Hello World|hin_Deva", results[0].Translated)
	require.Equal(t, session.NoTextFound, results[1].Extracted)
	require.Empty(t, results[1].Translated)
	require.Equal(t, session.InvalidImageFile, results[2].Extracted)
	require.Nil(t, results[2].Image)
	require.Equal(t, 1, h.backend.calls)

	html := body(t, h.get("/"))
	require.Less(t, strings.Index(html, "hello.png"), strings.Index(html, "blank.jpg"))
	require.Less(t, strings.Index(html, "blank.jpg"), strings.Index(html, "broken.jpeg"))
	require.Contains(t, html, "Hello World|hin_Deva")
	require.Contains(t, html, "Hindi translation")
	require.Contains(t, html, noPreviewMessage)
	require.Contains(t, html, noTextMessage)
	require.Contains(t, html, `download="translated_hello_hindi.txt"`)

	p := h.session().Progress()
	require.Equal(t, 3, p.Done)
	require.Equal(t, 3, p.Total)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	h := newHarness(t)
	h.get("/")

	resp := h.upload(file{"ok.png", pngOf(t, 10, 4)}, file{"notes.gif", []byte("GIF89a")})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body(t, resp), "notes.gif")
	require.Equal(t, session.Empty, h.session().State())
	require.Zero(t, h.backend.calls)
}

func TestUploadWithNoFilesKeepsState(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"hello.png", pngOf(t, 10, 4)})

	resp := h.upload()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Len(t, h.session().Results(), 1)
}

func TestNewUploadReplacesBatch(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"a.png", pngOf(t, 10, 4)}, file{"b.png", pngOf(t, 12, 4)})
	require.Len(t, h.session().Results(), 2)

	h.upload(file{"c.png", pngOf(t, 12, 4)})
	results := h.session().Results()
	require.Len(t, results, 1)
	require.Equal(t, "c.png", results[0].Filename)
	require.Len(t, h.session().Uploads(), 1)
}

func TestResetEmptiesSession(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"hello.png", pngOf(t, 10, 4)})

	resp := h.postForm("/reset", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	sess := h.session()
	require.Equal(t, session.Empty, sess.State())
	require.Empty(t, sess.Results())
	require.Empty(t, sess.Uploads())
	require.NotContains(t, body(t, h.get("/")), "hello.png")
}

func TestDownloadHeaders(t *testing.T) {
	h := newHarness(t)
	h.get("/")
	h.postForm("/language", url.Values{"language": {"Tamil"}})
	h.upload(file{"scan.JPG", pngOf(t, 10, 4)})

	resp := h.get("/results/0/download")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), `filename="translated_scan_tamil.txt"`)
	require.Equal(t, "Hello World|tam_Taml", body(t, resp))
}

func TestDownloadWithoutTranslation(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"blank.png", pngOf(t, 20, 20)})

	require.Equal(t, http.StatusNotFound, h.get("/results/0/download").StatusCode)
	require.Equal(t, http.StatusNotFound, h.get("/results/9/download").StatusCode)
	require.Equal(t, http.StatusBadRequest, h.get("/results/x/download").StatusCode)
}

func TestResultImageIsPNG(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"hello.png", pngOf(t, 10, 4)}, file{"broken.png", []byte("nope")})

	resp := h.get("/results/0/image")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(strings.NewReader(body(t, resp)))
	require.NoError(t, err)
	require.Equal(t, 10, img.Bounds().Dx())

	require.Equal(t, http.StatusNotFound, h.get("/results/1/image").StatusCode)
}

func TestAudioSynthesizedLazilyAndCached(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"hello.png", pngOf(t, 10, 4)})
	require.Zero(t, h.voice.calls, "no synthesis during the batch")

	resp := h.get("/results/0/audio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, "ID3:te:Hello World|tel_Telu", body(t, resp))

	h.get("/results/0/audio")
	require.Equal(t, 1, h.voice.calls)
}

func TestAudioFailureLeavesResultsIntact(t *testing.T) {
	h := newHarness(t)
	h.voice.err = errors.New("tts offline")
	h.upload(file{"hello.png", pngOf(t, 10, 4)})

	resp := h.get("/results/0/audio")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Contains(t, body(t, resp), "tts offline")

	r, ok := h.session().Result(0)
	require.True(t, ok)
	require.Equal(t, "Hello World|tel_Telu", r.Translated)
	_, cached := r.Audio()
	require.False(t, cached)
}

func TestLanguageChangeDoesNotRetranslate(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"hello.png", pngOf(t, 10, 4)})

	h.postForm("/language", url.Values{"language": {"Bengali"}})
	r, _ := h.session().Result(0)
	require.Equal(t, "Hello World|tel_Telu", r.Translated)
	require.Equal(t, 1, h.backend.calls)

	html := body(t, h.get("/"))
	require.Contains(t, html, "Telugu translation")
	require.Contains(t, html, `action="/retranslate"`)

	h.postForm("/retranslate", nil)
	r, _ = h.session().Result(0)
	require.Equal(t, "Hello World|ben_Beng", r.Translated)
	require.Equal(t, "Bengali", r.Language.Name)
	require.Equal(t, 2, h.backend.calls)
}

func TestFailedTranslationsCanBeRetried(t *testing.T) {
	h := newHarness(t)
	h.backend.err = errors.New("model offline")
	h.upload(file{"hello.png", pngOf(t, 10, 4)}, file{"blank.png", pngOf(t, 30, 30)})

	r, _ := h.session().Result(0)
	require.Empty(t, r.Translated)
	require.Equal(t, "Telugu", r.Language.Name)
	require.Contains(t, body(t, h.get("/")), `action="/retranslate"`)

	h.backend.err = nil
	h.postForm("/retranslate", nil)
	r, _ = h.session().Result(0)
	require.Equal(t, "Hello World|tel_Telu", r.Translated)
	require.NotContains(t, body(t, h.get("/")), `action="/retranslate"`)
}

func TestNoRetranslateOfferWithoutText(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"blank.png", pngOf(t, 30, 30)}, file{"broken.png", []byte("garbage")})

	h.postForm("/language", url.Values{"language": {"Hindi"}})
	require.NotContains(t, body(t, h.get("/")), `action="/retranslate"`)
}

func TestUnknownLanguageRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.postForm("/language", url.Values{"language": {"Klingon"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Telugu", h.session().Language().Name)
}

func TestProgressEndpoint(t *testing.T) {
	h := newHarness(t)
	h.upload(file{"a.png", pngOf(t, 10, 4)}, file{"b.png", pngOf(t, 12, 4)})

	resp := h.get("/progress")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p struct {
		Done     int     `json:"done"`
		Total    int     `json:"total"`
		Fraction float64 `json:"fraction"`
		Filename string  `json:"filename"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Equal(t, 2, p.Done)
	require.Equal(t, 2, p.Total)
	require.InDelta(t, 1.0, p.Fraction, 1e-9)
	require.Equal(t, "b.png", p.Filename)
}

func TestSessionsAreIsolated(t *testing.T) {
	alice := newHarness(t)
	alice.upload(file{"hello.png", pngOf(t, 10, 4)})

	// A second browser on the same server.
	bob := &harness{t: t, srv: alice.srv}
	bob.get("/")
	require.NotEqual(t, alice.cookies[0].Value, bob.cookies[0].Value)
	require.Empty(t, bob.session().Results())
	require.Len(t, alice.session().Results(), 1)
}

func TestLanguagesAndHealth(t *testing.T) {
	h := newHarness(t)

	var langs struct {
		Default   string `json:"default"`
		Languages []struct {
			Name       string `json:"name"`
			TargetCode string `json:"target_code"`
		} `json:"languages"`
	}
	require.NoError(t, json.Unmarshal([]byte(body(t, h.get("/languages"))), &langs))
	require.Equal(t, "Telugu", langs.Default)
	require.Len(t, langs.Languages, 7)

	require.Contains(t, body(t, h.get("/healthz")), `"status":"ok"`)

	h.backend.readyErr = errors.New("model not loaded")
	require.Contains(t, body(t, h.get("/healthz")), `"status":"degraded"`)
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t)
	resp := h.get("/static/app.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "navigator.clipboard")
}
