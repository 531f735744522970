// Package session holds per-session UI state: the last uploaded batch and the
// Result Records produced from it.
package session

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgtranslate/internal/imaging"
	"imgtranslate/internal/language"
)

// Sentinel values stored in Result.Extracted.
const (
	NoTextFound      = "No text found in the image"
	InvalidImageFile = "Invalid image file"
	processingPrefix = "Error processing file: "
)

// ProcessingError formats the Extracted value for unexpected per-file failures.
func ProcessingError(err error) string {
	return processingPrefix + err.Error()
}

// State is the session state machine: Empty -> BatchLoaded -> (Reset) -> Empty.
type State int

const (
	Empty State = iota
	BatchLoaded
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case BatchLoaded:
		return "batch_loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Upload is one uploaded file, kept as received.
type Upload struct {
	Filename string
	Data     []byte
}

// Result is the Result Record for one uploaded image.
type Result struct {
	Filename    string
	Image       image.Image // display thumbnail, nil when decoding failed
	Extracted   string
	Translated  string
	Language    language.Language
	Diagnostics []string

	mu    sync.Mutex
	audio []byte
}

// HasText reports whether Extracted holds recognized text rather than a
// placeholder for an empty extraction.
func (r *Result) HasText() bool {
	return r.Extracted != "" && r.Extracted != NoTextFound
}

// HasTranslation reports whether download, copy and audio actions apply.
func (r *Result) HasTranslation() bool {
	return r.Translated != ""
}

// DownloadFilename is the name of the translated text artifact.
func (r *Result) DownloadFilename() string {
	return DownloadFilename(r.Filename, r.Language)
}

// Audio returns the lazily attached MP3, if any.
func (r *Result) Audio() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audio, r.audio != nil
}

// AttachAudio caches synthesized audio on the record. It is the only
// mutation a record sees after creation.
func (r *Result) AttachAudio(audio []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = audio
}

// DownloadFilename builds translated_<basename>_<language>.txt.
func DownloadFilename(original string, lang language.Language) string {
	return fmt.Sprintf("translated_%s_%s.txt", imaging.BaseName(original), lang.Slug())
}

// Progress reports how far a batch run has got.
type Progress struct {
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Filename string `json:"filename"`
	Running  bool   `json:"running"`
}

// Fraction is Done/Total, or 0 before a batch starts.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Session is the state of one interactive user.
type Session struct {
	ID string

	mu       sync.RWMutex
	language language.Language
	uploads  []Upload
	results  []*Result
	progress Progress
	lastSeen time.Time
}

// New creates an empty session with the default language selected.
func New() *Session {
	return &Session{
		ID:       uuid.NewString(),
		language: language.Default(),
		lastSeen: time.Now(),
	}
}

// Language returns the current selection.
func (s *Session) Language() language.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage changes the selection. Existing results keep their language.
func (s *Session) SetLanguage(l language.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = l
}

// State derives the state machine position from the stored batch.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.uploads) == 0 && len(s.results) == 0 {
		return Empty
	}
	return BatchLoaded
}

// Results returns a copy of the result list.
func (s *Session) Results() []*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Result(nil), s.results...)
}

// Result returns the record at idx.
func (s *Session) Result(idx int) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.results) {
		return nil, false
	}
	return s.results[idx], true
}

// Uploads returns a copy of the stored upload list.
func (s *Session) Uploads() []Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Upload(nil), s.uploads...)
}

// LoadBatch replaces the stored batch wholesale.
func (s *Session) LoadBatch(uploads []Upload, results []*Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append([]Upload(nil), uploads...)
	s.results = append([]*Result(nil), results...)
}

// ReplaceResults swaps the result list and keeps the stored uploads.
func (s *Session) ReplaceResults(results []*Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]*Result(nil), results...)
}

// Reset clears uploads, results and progress.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = []Upload{}
	s.results = []*Result{}
	s.progress = Progress{}
}

// Progress returns the latest progress report.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// SetProgress records a progress report.
func (s *Session) SetProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// Touch marks the session as used now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}
