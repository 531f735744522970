package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"imgtranslate/internal/imaging"
	"imgtranslate/internal/logger"
	"imgtranslate/internal/ocr"
	"imgtranslate/internal/session"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image]",
	Short: "Extract English text from an image",
	Long: `Run only the text extraction step over one image file and print the result.

The engine is chosen with OCR_ENGINE:
  tesseract - local Tesseract (requires the eng language pack), the default
  vision    - Google Cloud Vision; needs GOOGLE_APPLICATION_CREDENTIALS,
              GOOGLE_CREDENTIALS or Application Default Credentials`,
	Example: `  # Print the text found in a photo
  imgtranslate ocr sign.jpg

  # Save JSON output to a file
  imgtranslate ocr scan.png --json -o scan.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string `json:"text"`
	Found              bool   `json:"found"`
	Engine             string `json:"engine"`
	Width              int    `json:"width,omitempty"`
	Height             int    `json:"height,omitempty"`
	Format             string `json:"format,omitempty"`
	ProcessingDuration string `json:"processing_duration,omitempty"`
	FileName           string `json:"file_name"`
	FileSize           int64  `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Str("output", outputPath).
		Bool("json", jsonOutput).
		Msg("Starting OCR processing")

	if err := validateImageFile(imagePath, log); err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	img, format, err := imaging.Decode(data, cfg.MaxImagePixels)
	if err != nil {
		log.Error().Err(err).Str("file", imagePath).Msg("Failed to decode image")
		if errors.Is(err, imaging.ErrInvalidImage) {
			return fmt.Errorf("%s: %s", session.InvalidImageFile, imagePath)
		}
		return fmt.Errorf("%s: %s", session.ProcessingError(err), imagePath)
	}

	ctx, cancel := createCommandContext(log)
	defer cancel()

	engine, err := createOCREngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	extractor := ocr.NewExtractor(engine, cfg.OCRLanguage)
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	extraction := extractor.Extract(ctx, img)
	if !extraction.OK() {
		return handleOCRError(extraction.Err, log)
	}

	log.Info().
		Str("engine", engine.Name()).
		Dur("duration", extraction.Duration).
		Int("text_length", len(extraction.Text)).
		Msg("OCR processing completed successfully")

	b := img.Bounds()
	out := OCROutput{
		Text:               extraction.Text,
		Found:              !extraction.Empty(),
		Engine:             engine.Name(),
		Width:              b.Dx(),
		Height:             b.Dy(),
		Format:             format,
		ProcessingDuration: extraction.Duration.String(),
		FileName:           filepath.Base(imagePath),
		FileSize:           int64(len(data)),
	}
	return outputOCRResult(out, outputPath, jsonOutput, log)
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large for the OCR engine (maximum 20MB encoded). Try a smaller image")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.\n\nOriginal error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "tessdata") || strings.Contains(errStr, "Failed loading language"):
		return fmt.Errorf("Tesseract language data not found. Install the 'eng' traineddata pack or set TESSDATA_PREFIX: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

func outputOCRResult(out OCROutput, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = data
	} else if out.Found {
		outputData = []byte(out.Text)
	} else {
		outputData = []byte(session.NoTextFound)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
