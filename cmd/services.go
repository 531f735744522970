package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"imgtranslate/internal/config"
	"imgtranslate/internal/ocr"
	"imgtranslate/internal/ocr/tesseract"
	"imgtranslate/internal/pipeline"
	"imgtranslate/internal/speech"
	"imgtranslate/internal/translate"
)

// loadConfig reads the environment (already populated from .env by main).
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, err
	}
	return cfg, nil
}

// createCommandContext returns a context canceled on SIGINT or SIGTERM.
func createCommandContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCREngine builds the engine named by OCR_ENGINE.
func createOCREngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Engine, error) {
	switch cfg.OCREngine {
	case config.OCREngineTesseract:
		log.Debug().Msg("Using Tesseract OCR engine")
		return tesseract.New(), nil

	case config.OCREngineVision:
		engine, err := ocr.NewVisionEngine(ctx)
		if err != nil {
			if errors.Is(err, ocr.ErrMissingCredentials) {
				log.Error().Err(err).Msg("Google Cloud credentials validation failed")
				return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n" +
					"1. GOOGLE_APPLICATION_CREDENTIALS points to a readable service account JSON file, or\n" +
					"2. GOOGLE_CREDENTIALS holds valid inline JSON, or\n" +
					"3. Application Default Credentials are configured (gcloud auth application-default login)\n\n" +
					"Original error: %w", err)
			}
			log.Error().Err(err).Msg("Failed to create Vision OCR engine")
			return nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
		log.Debug().Msg("Using Google Cloud Vision OCR engine")
		return engine, nil

	default:
		return nil, fmt.Errorf("%w: %q", ocr.ErrUnknownEngine, cfg.OCREngine)
	}
}

// createTranslator builds the translator backend and checks that its model is
// available. A failure here is the one fatal startup condition.
func createTranslator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*translate.Translator, error) {
	var backend translate.Backend
	switch cfg.TranslatorBackend {
	case config.TranslatorNLLB:
		backend = translate.NewNLLBBackend(cfg.NLLBEndpoint, cfg.NLLBModel)
	case config.TranslatorOpenAI:
		backend = translate.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("%w: %q", translate.ErrUnknownBackend, cfg.TranslatorBackend)
	}

	translator := translate.NewTranslator(backend, cfg.SourceLanguage)

	log.Info().
		Str("backend", backend.Name()).
		Msg("Loading translation model")
	if err := translator.Ready(ctx); err != nil {
		log.Error().
			Err(err).
			Str("backend", backend.Name()).
			Msg("Translation model failed to load")
		return nil, fmt.Errorf("translation model unavailable: %w", err)
	}
	log.Info().Str("backend", backend.Name()).Msg("Translation model ready")

	return translator, nil
}

// createSynthesizer builds the speech engine named by SPEECH_ENGINE.
func createSynthesizer(cfg *config.Config) *speech.Synthesizer {
	var engine speech.Engine
	switch cfg.SpeechEngine {
	case config.SpeechOpenAI:
		engine = speech.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSModel, cfg.OpenAITTSVoice)
	default:
		engine = speech.NewGTTSEngine(cfg.GTTSBaseURL)
	}
	return speech.NewSynthesizer(engine)
}

// createPipeline wires extractor and translator into a Batch Pipeline.
func createPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Pipeline, *ocr.Extractor, *translate.Translator, error) {
	engine, err := createOCREngine(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	extractor := ocr.NewExtractor(engine, cfg.OCRLanguage)

	translator, err := createTranslator(ctx, cfg, log)
	if err != nil {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
		return nil, nil, nil, err
	}

	p := pipeline.New(extractor, translator, pipeline.Options{
		ThumbnailSize: cfg.ThumbnailSize,
		MaxBytes:      cfg.MaxUploadBytes(),
		MaxPixels:     cfg.MaxImagePixels,
	})
	return p, extractor, translator, nil
}
