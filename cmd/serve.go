package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"imgtranslate/internal/httpserver"
	"imgtranslate/internal/logger"
	"imgtranslate/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser UI",
	Long: `Start the web interface. Users pick a target language, upload one or more
.png/.jpg/.jpeg images and get the extracted text, its translation, a
downloadable text file and on-demand audio for each image.

The translation model is checked before the server starts listening; if it
cannot be loaded the command exits with an error.

Environment variables (see .env):
  LISTEN_ADDR         - listen address (default :8080)
  OCR_ENGINE          - tesseract or vision
  TRANSLATOR_BACKEND  - nllb or openai
  NLLB_ENDPOINT       - NLLB inference server URL
  SPEECH_ENGINE       - gtts or openai
  MAX_UPLOAD_MB       - request body limit
  SESSION_TTL         - idle time before a session is discarded`,
	Example: `  # Serve on the default address
  imgtranslate serve

  # Serve on another port
  imgtranslate serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}

	ctx, cancel := createCommandContext(log)
	defer cancel()

	p, extractor, translator, err := createPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	srv, err := httpserver.New(httpserver.Deps{
		Pipeline:    p,
		Translator:  translator,
		Synthesizer: createSynthesizer(cfg),
		Sessions:    session.NewStore(cfg.SessionTTL),
	}, httpserver.Options{
		ListenAddr: cfg.ListenAddr,
		BodyLimit:  cfg.MaxUploadBytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("ocr_engine", cfg.OCREngine).
		Str("translator", cfg.TranslatorBackend).
		Str("speech_engine", cfg.SpeechEngine).
		Msg("Starting server")

	if err := srv.Listen(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
