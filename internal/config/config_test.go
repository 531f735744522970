package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "OCR_ENGINE", "TRANSLATOR_BACKEND", "SPEECH_ENGINE",
		"MAX_UPLOAD_MB", "SESSION_TTL", "THUMBNAIL_SIZE", "OPENAI_API_KEY",
		"MAX_IMAGE_PIXELS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, OCREngineTesseract, cfg.OCREngine)
	require.Equal(t, TranslatorNLLB, cfg.TranslatorBackend)
	require.Equal(t, SpeechGTTS, cfg.SpeechEngine)
	require.Equal(t, 600, cfg.ThumbnailSize)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, 20*1024*1024, cfg.MaxUploadBytes())
	require.Equal(t, "eng_Latn", cfg.SourceLanguage)
	require.Equal(t, 178_956_970, cfg.MaxImagePixels)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown ocr engine",
			env:     map[string]string{"OCR_ENGINE": "abbyy"},
			wantErr: "OCR_ENGINE",
		},
		{
			name:    "openai translator without key",
			env:     map[string]string{"TRANSLATOR_BACKEND": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "openai speech without key",
			env:     map[string]string{"SPEECH_ENGINE": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "unknown speech engine",
			env:     map[string]string{"SPEECH_ENGINE": "espeak"},
			wantErr: "SPEECH_ENGINE",
		},
		{
			name:    "non-positive pixel limit",
			env:     map[string]string{"MAX_IMAGE_PIXELS": "-1"},
			wantErr: "MAX_IMAGE_PIXELS",
		},
		{
			name: "openai everything",
			env: map[string]string{
				"TRANSLATOR_BACKEND": "OpenAI",
				"SPEECH_ENGINE":      "openai",
				"OPENAI_API_KEY":     "sk-test",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"OCR_ENGINE", "TRANSLATOR_BACKEND", "SPEECH_ENGINE", "OPENAI_API_KEY"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "lots")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 20, cfg.MaxUploadMB)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
}
