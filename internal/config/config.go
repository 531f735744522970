package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"imgtranslate/internal/imaging"
	"imgtranslate/internal/logger"
)

// Engine and backend names accepted in the environment.
const (
	OCREngineTesseract = "tesseract"
	OCREngineVision    = "vision"

	TranslatorNLLB   = "nllb"
	TranslatorOpenAI = "openai"

	SpeechGTTS   = "gtts"
	SpeechOpenAI = "openai"
)

type Config struct {
	// HTTP server
	ListenAddr  string
	MaxUploadMB int
	SessionTTL  time.Duration

	// OCR
	OCREngine   string
	OCRLanguage string

	// Translation
	TranslatorBackend string
	NLLBEndpoint      string
	NLLBModel         string
	SourceLanguage    string

	// OpenAI-compatible API, shared by the openai translator and speech engine
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAITTSModel string
	OpenAITTSVoice string

	// Speech
	SpeechEngine string
	GTTSBaseURL  string

	// Images
	ThumbnailSize  int
	MaxImagePixels int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		MaxUploadMB:       getInt("MAX_UPLOAD_MB", 20),
		SessionTTL:        getDuration("SESSION_TTL", 2*time.Hour),
		OCREngine:         strings.ToLower(getEnv("OCR_ENGINE", OCREngineTesseract)),
		OCRLanguage:       getEnv("OCR_LANGUAGE", "eng"),
		TranslatorBackend: strings.ToLower(getEnv("TRANSLATOR_BACKEND", TranslatorNLLB)),
		NLLBEndpoint:      getEnv("NLLB_ENDPOINT", "http://localhost:7860"),
		NLLBModel:         getEnv("NLLB_MODEL", "facebook/nllb-200-distilled-600M"),
		SourceLanguage:    getEnv("SOURCE_LANGUAGE", "eng_Latn"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITTSModel:    getEnv("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:    getEnv("OPENAI_TTS_VOICE", "alloy"),
		SpeechEngine:      strings.ToLower(getEnv("SPEECH_ENGINE", SpeechGTTS)),
		GTTSBaseURL:       getEnv("GTTS_BASE_URL", "https://translate.google.com"),
		ThumbnailSize:     getInt("THUMBNAIL_SIZE", 600),
		MaxImagePixels:    getInt("MAX_IMAGE_PIXELS", imaging.DefaultMaxPixels),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:     getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:         getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case OCREngineTesseract, OCREngineVision:
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", OCREngineTesseract, OCREngineVision, c.OCREngine)
	}

	switch c.TranslatorBackend {
	case TranslatorNLLB:
		if c.NLLBEndpoint == "" {
			return fmt.Errorf("NLLB_ENDPOINT is required for the nllb translator")
		}
	case TranslatorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai translator")
		}
	default:
		return fmt.Errorf("TRANSLATOR_BACKEND must be %q or %q, got %q", TranslatorNLLB, TranslatorOpenAI, c.TranslatorBackend)
	}

	switch c.SpeechEngine {
	case SpeechGTTS:
	case SpeechOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai speech engine")
		}
	default:
		return fmt.Errorf("SPEECH_ENGINE must be %q or %q, got %q", SpeechGTTS, SpeechOpenAI, c.SpeechEngine)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.ThumbnailSize <= 0 {
		return fmt.Errorf("THUMBNAIL_SIZE must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}
	return nil
}

// MaxUploadBytes returns the upload body limit in bytes.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB * 1024 * 1024
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
