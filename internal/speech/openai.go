package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine voices text with the OpenAI audio/speech API. The voices are
// multilingual and pick the language from the text, so langCode is only
// checked against the supported set.
type OpenAIEngine struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAIEngine creates an engine from an API key and optional base URL.
func NewOpenAIEngine(apiKey, baseURL, model, voice string) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIEngineWithClient(openai.NewClientWithConfig(cfg), model, voice)
}

// NewOpenAIEngineWithClient creates an engine with an explicit client.
func NewOpenAIEngineWithClient(client *openai.Client, model, voice string) *OpenAIEngine {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAIEngine{
		client: client,
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
	}
}

func (o *OpenAIEngine) Name() string { return "openai" }

// Synthesize requests MP3 audio for text.
func (o *OpenAIEngine) Synthesize(ctx context.Context, text, langCode string) ([]byte, error) {
	const op = "openai.Synthesize"

	if !SupportsLanguage(langCode) {
		return nil, &SynthesisError{Op: op, Language: langCode, Err: ErrUnsupportedLanguage}
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, &SynthesisError{Op: op, Language: langCode, Err: fmt.Errorf("%w: %v", ErrSynthesisFailed, err)}
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &SynthesisError{Op: op, Language: langCode, Err: fmt.Errorf("%w: read audio: %v", ErrSynthesisFailed, err)}
	}
	return audio, nil
}
