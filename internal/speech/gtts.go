package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultGTTSBaseURL is the public Google Translate host.
	DefaultGTTSBaseURL = "https://translate.google.com"

	// MaxChunkRunes is the longest text the TTS endpoint accepts per request.
	MaxChunkRunes = 100

	gttsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// gttsLanguages are the voices the endpoint serves.
var gttsLanguages = map[string]bool{
	"af": true, "ar": true, "bg": true, "bn": true, "bs": true, "ca": true, "cs": true,
	"da": true, "de": true, "el": true, "en": true, "es": true, "et": true, "fi": true,
	"fr": true, "gu": true, "hi": true, "hr": true, "hu": true, "id": true, "is": true,
	"it": true, "iw": true, "ja": true, "jw": true, "km": true, "kn": true, "ko": true,
	"la": true, "lv": true, "ml": true, "mr": true, "ms": true, "my": true, "ne": true,
	"nl": true, "no": true, "pa": true, "pl": true, "pt": true, "ro": true, "ru": true,
	"si": true, "sk": true, "sq": true, "sr": true, "su": true, "sv": true, "sw": true,
	"ta": true, "te": true, "th": true, "tl": true, "tr": true, "uk": true, "ur": true,
	"vi": true, "zh-CN": true, "zh-TW": true,
}

// SupportsLanguage reports whether the Google TTS engine can voice code.
func SupportsLanguage(code string) bool {
	return gttsLanguages[code]
}

// GTTSEngine fetches MP3 audio from the Google Translate TTS endpoint.
type GTTSEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewGTTSEngine creates an engine against baseURL (DefaultGTTSBaseURL when empty).
func NewGTTSEngine(baseURL string) *GTTSEngine {
	if baseURL == "" {
		baseURL = DefaultGTTSBaseURL
	}
	return &GTTSEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the HTTP client (for testing).
func (g *GTTSEngine) WithHTTPClient(client *http.Client) *GTTSEngine {
	g.httpClient = client
	return g
}

func (g *GTTSEngine) Name() string { return "gtts" }

// Synthesize splits text into endpoint-sized chunks and concatenates the MP3
// payloads in order.
func (g *GTTSEngine) Synthesize(ctx context.Context, text, langCode string) ([]byte, error) {
	const op = "gtts.Synthesize"

	if !SupportsLanguage(langCode) {
		return nil, &SynthesisError{Op: op, Language: langCode, Err: ErrUnsupportedLanguage}
	}

	chunks := SplitText(text, MaxChunkRunes)
	if len(chunks) == 0 {
		return nil, &SynthesisError{Op: op, Language: langCode, Err: ErrEmptyText}
	}

	var audio bytes.Buffer
	for idx, chunk := range chunks {
		if err := g.fetchChunk(ctx, &audio, chunk, langCode, idx, len(chunks)); err != nil {
			return nil, &SynthesisError{Op: op, Language: langCode, Err: err}
		}
	}
	return audio.Bytes(), nil
}

func (g *GTTSEngine) fetchChunk(ctx context.Context, dst *bytes.Buffer, chunk, langCode string, idx, total int) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("q", chunk)
	params.Set("tl", langCode)
	params.Set("ttsspeed", "1")
	params.Set("total", strconv.Itoa(total))
	params.Set("idx", strconv.Itoa(idx))
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", gttsUserAgent)
	req.Header.Set("Referer", g.baseURL+"/")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: chunk %d/%d: %v", ErrSynthesisFailed, idx+1, total, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: chunk %d/%d: endpoint returned %d", ErrSynthesisFailed, idx+1, total, resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("%w: read chunk %d/%d: %v", ErrSynthesisFailed, idx+1, total, err)
	}
	return nil
}

// SplitText breaks text into chunks of at most maxRunes runes. Sentence
// punctuation always ends a chunk; within a sentence words are packed greedily
// and a single over-long word is cut on rune boundaries.
func SplitText(text string, maxRunes int) []string {
	var chunks []string
	for _, sentence := range splitSentences(text) {
		var cur []rune
		flush := func() {
			if len(cur) > 0 {
				chunks = append(chunks, string(cur))
				cur = cur[:0]
			}
		}
		for _, word := range strings.Fields(sentence) {
			w := []rune(word)
			for len(w) > maxRunes {
				flush()
				chunks = append(chunks, string(w[:maxRunes]))
				w = w[maxRunes:]
			}
			if len(w) == 0 {
				continue
			}
			switch {
			case len(cur) == 0:
				cur = append(cur, w...)
			case len(cur)+1+len(w) <= maxRunes:
				cur = append(cur, ' ')
				cur = append(cur, w...)
			default:
				flush()
				cur = append(cur, w...)
			}
		}
		flush()
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if isSentenceEnd(r) {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '\n', '।', '॥':
		return true
	}
	return unicode.Is(unicode.Sentence_Terminal, r)
}
