// Package speech synthesizes MP3 audio from translated text.
//
// Engines:
//   - gtts: the Google Translate text-to-speech endpoint, the default
//   - openai: the OpenAI audio/speech API
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"imgtranslate/internal/logger"
)

// Common synthesis errors
var (
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("no text to synthesize")

	// ErrUnsupportedLanguage is returned for language codes the engine cannot voice.
	ErrUnsupportedLanguage = errors.New("unsupported speech language")

	// ErrSynthesisFailed is returned when the engine fails to produce audio.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// SynthesisError wraps errors with the operation and language that failed.
type SynthesisError struct {
	Op       string
	Language string
	Err      error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Language != "" {
		return fmt.Sprintf("speech: %s (%s) failed: %v", e.Op, e.Language, e.Err)
	}
	return fmt.Sprintf("speech: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Engine turns text into MP3 bytes.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, langCode string) ([]byte, error)
}

// Speech is the outcome of one synthesis. Audio is nil whenever Err is set.
type Speech struct {
	// Audio is the MP3 stream positioned at offset zero.
	Audio    *bytes.Reader
	Err      error
	Duration time.Duration
}

// OK reports whether audio is available.
func (s Speech) OK() bool {
	return s.Err == nil && s.Audio != nil
}

// Bytes returns a copy of the whole MP3 payload regardless of the reader position.
func (s Speech) Bytes() []byte {
	if s.Audio == nil {
		return nil
	}
	out := make([]byte, s.Audio.Size())
	_, _ = s.Audio.ReadAt(out, 0)
	return out
}

// Synthesizer is the Speech Synthesizer component.
type Synthesizer struct {
	engine Engine
	log    zerolog.Logger
}

// NewSynthesizer wraps engine.
func NewSynthesizer(engine Engine) *Synthesizer {
	return &Synthesizer{
		engine: engine,
		log:    logger.WithComponent("speech"),
	}
}

// Synthesize voices text in langCode. Failures are returned as data.
func (s *Synthesizer) Synthesize(ctx context.Context, text, langCode string) Speech {
	const op = "Synthesize"
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return Speech{Err: &SynthesisError{Op: op, Language: langCode, Err: ErrEmptyText}}
	}

	audio, err := s.engine.Synthesize(ctx, text, langCode)
	duration := time.Since(start)
	if err == nil && len(audio) == 0 {
		err = fmt.Errorf("%w: engine returned no audio", ErrSynthesisFailed)
	}
	if err != nil {
		var synthErr *SynthesisError
		if !errors.As(err, &synthErr) {
			err = &SynthesisError{Op: op, Language: langCode, Err: err}
		}
		s.log.Error().
			Err(err).
			Str("engine", s.engine.Name()).
			Str("language", langCode).
			Dur("duration", duration).
			Msg("Audio generation error")
		return Speech{Err: err, Duration: duration}
	}

	s.log.Debug().
		Str("engine", s.engine.Name()).
		Str("language", langCode).
		Int("bytes", len(audio)).
		Dur("duration", duration).
		Msg("Audio generated")

	return Speech{Audio: bytes.NewReader(audio), Duration: duration}
}
